// Консольный гостевой виджет: интерактивный клиент поверх widget.Session
// для ручной проверки против референсного сервера.
//
// Использование:
//
//	go run ./scripts -server http://localhost:8080 -name "Алиса"
//
// Команды: /file <путь> [подпись], /new, /quit; остальной ввод отправляется как текст.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/egor/warrantychat/chatapi"
	"github.com/egor/warrantychat/models"
	"github.com/egor/warrantychat/storage"
	"github.com/egor/warrantychat/transport"
	"github.com/egor/warrantychat/widget"
)

func main() {
	_ = godotenv.Load()

	serverURL := flag.String("server", envOr("CHAT_SERVER_URL", "http://localhost:8080"), "адрес сервера чата")
	name := flag.String("name", "", "имя гостя")
	serviceCenter := flag.String("sc", "default", "id сервисного центра")
	verbose := flag.Bool("v", false, "подробные логи")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "укажите имя: -name \"Ваше имя\"")
		os.Exit(1)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	wsURL := "ws" + strings.TrimPrefix(*serverURL, "http") + "/ws"

	api := chatapi.NewClient(*serverURL)
	tr := transport.NewManager(wsURL, logger)
	store := storage.New("")

	cfg := widget.DefaultConfig()
	cfg.ServiceCenterID = *serviceCenter
	session := widget.NewSession(api, tr, store, cfg, logger)

	// перерисовка: печатаем только новые сообщения
	printed := 0
	session.SetOnChange(func() {
		msgs := session.Messages()
		for ; printed < len(msgs); printed++ {
			printMessage(msgs[printed])
		}
		if e := session.Err(); e != "" {
			fmt.Printf("! %s\n", e)
			session.ClearError()
		}
	})

	ctx := context.Background()
	if err := session.StartChat(ctx, *name); err != nil {
		fmt.Fprintf(os.Stderr, "не удалось начать чат: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("-- разговор %s, состояние: %s --\n", session.Handle().ConversationID, session.State())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			session.SetOpen(false)
			return
		case line == "/new":
			session.NewChat()
			printed = 0
			if err := session.StartChat(ctx, *name); err != nil {
				fmt.Fprintf(os.Stderr, "не удалось начать чат: %v\n", err)
				return
			}
			fmt.Printf("-- новый разговор %s --\n", session.Handle().ConversationID)
		case strings.HasPrefix(line, "/file "):
			sendFile(ctx, session, strings.TrimPrefix(line, "/file "))
		default:
			session.NotifyTyping(line)
			if err := session.SendMessage(ctx, line); err != nil {
				fmt.Fprintf(os.Stderr, "ошибка отправки: %v\n", err)
			}
		}
	}
}

func sendFile(ctx context.Context, session *widget.Session, args string) {
	path := args
	caption := ""
	if i := strings.IndexByte(args, ' '); i >= 0 {
		path, caption = args[:i], strings.TrimSpace(args[i:])
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "не удалось открыть файл: %v\n", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "не удалось прочитать файл: %v\n", err)
		return
	}

	att := models.SelectedAttachment{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Data:     f,
	}
	if err := session.SendAttachment(ctx, att, caption); err != nil {
		fmt.Fprintf(os.Stderr, "ошибка отправки файла: %v\n", err)
	}
}

func printMessage(m models.Message) {
	c := models.DecodeContent(m.Content)
	switch m.SenderType {
	case models.SenderSystem:
		fmt.Printf("-- %s --\n", m.Content)
	default:
		name := m.SenderName
		if name == "" {
			name = m.SenderType
		}
		switch c.Kind {
		case models.KindFile:
			fmt.Printf("[%s] (%s) %s\n", name, c.FileType, c.FileURL)
		case models.KindFileText:
			fmt.Printf("[%s] (%s) %s — %s\n", name, c.FileType, c.FileURL, c.Text)
		default:
			fmt.Printf("[%s] %s\n", name, c.Text)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

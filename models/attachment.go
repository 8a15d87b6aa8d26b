package models

import (
	"errors"
	"io"
	"path"
	"strings"
)

// MaxAttachmentSize — максимальный размер вложения (10 MiB), проверяется при выборе файла
const MaxAttachmentSize = 10 << 20

// ErrAttachmentTooLarge возвращается до любых сетевых вызовов
var ErrAttachmentTooLarge = errors.New("файл превышает 10 МБ")

// ContentKind — вид содержимого сообщения
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindFile     ContentKind = "file"
	KindFileText ContentKind = "file+text"
)

// Типы файлов, различаемые при отображении
const (
	FileTypeImage   = "image"
	FileTypeGeneric = "file"
)

// Content — разобранное содержимое сообщения. На проводе вложение кодируется
// внутрь текстового поля content (URL первой строкой), структурного поля нет;
// вся внутренняя логика работает с этим размеченным представлением.
type Content struct {
	Kind     ContentKind
	FileURL  string
	FileType string // "image" или "file", выводится из расширения URL
	Text     string
}

// EncodeContent собирает wire-представление: URL файла первой строкой,
// подпись — остатком. Обратная операция — DecodeContent.
func EncodeContent(fileURL, text string) string {
	switch {
	case fileURL == "":
		return text
	case text == "":
		return fileURL
	default:
		return fileURL + "\n" + text
	}
}

// DecodeContent разбирает поле content: если первый токен — http(s)-ссылка,
// это вложение, остаток — подпись. Кодирование и декодирование симметричны.
func DecodeContent(raw string) Content {
	trimmed := strings.TrimSpace(raw)
	token := trimmed
	rest := ""
	if i := strings.IndexAny(trimmed, " \n\t"); i >= 0 {
		token = trimmed[:i]
		rest = strings.TrimSpace(trimmed[i:])
	}

	if !strings.HasPrefix(token, "http://") && !strings.HasPrefix(token, "https://") {
		return Content{Kind: KindText, Text: trimmed}
	}

	c := Content{
		FileURL:  token,
		FileType: fileTypeForURL(token),
		Text:     rest,
	}
	if rest == "" {
		c.Kind = KindFile
	} else {
		c.Kind = KindFileText
	}
	return c
}

// fileTypeForURL выводит тип файла из расширения (query-часть отбрасывается)
func fileTypeForURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(path.Ext(url)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return FileTypeImage
	default:
		return FileTypeGeneric
	}
}

// SelectedAttachment — единственный слот выбранного вложения.
// Выбор нового файла замещает предыдущий; очереди вложений нет.
type SelectedAttachment struct {
	Filename string
	Size     int64
	Data     io.Reader
}

// Validate выполняет синхронную локальную проверку размера
func (a SelectedAttachment) Validate() error {
	if a.Size > MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	return nil
}

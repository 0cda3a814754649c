package domain

type MessageKind string

const (
	MessageKindSticker MessageKind = "sticker"
	MessageKindText    MessageKind = "text"
	MessageKindPhoto   MessageKind = "photo"
	MessageKindOther   MessageKind = "other"
)

// IncomingEvent is one inbound message as the sticker service sees it.
type IncomingEvent struct {
	MessageID  int
	ChatID     int64
	SenderID   int64
	SenderName string
	Kind       MessageKind
	Sticker    *StickerRef
}

// StickerRef identifies the sticker a user sent.
type StickerRef struct {
	FileID  string
	Emoji   string
	SetName string
}

// RemoteFile is what getFile resolves a file id to.
type RemoteFile struct {
	FileID   string
	FilePath string
	Size     int
}

package domain

import (
	"fmt"
	"io"
)

const packLinkPrefix = "https://t.me/addstickers/"

// PackName is the name of the personal pack the bot keeps for a user. It is derived
// every time and never stored.
func PackName(senderID int64, botUsername string) string {
	return fmt.Sprintf("user_%d_by_%s", senderID, botUsername)
}

func PackTitle(firstName string) string {
	return firstName + "'s Personal Stickerpack"
}

func PackLink(name string) string {
	return packLinkPrefix + name
}

// NewSticker is the payload of addStickerToSet and createNewStickerSet. Title is only
// sent when a set is created; Emoji is omitted when empty.
type NewSticker struct {
	UserID    int64
	SetName   string
	Title     string
	Emoji     string
	ImageName string
	Image     io.Reader
}

type StickerSet struct {
	Name     string
	Title    string
	Stickers []Sticker
}

type Sticker struct {
	FileID string
	Emoji  string
}

package converter

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/webp"

	"github.com/dskvich/sticker-pack-bot/pkg/domain"
)

// Local decodes the downloaded sticker in-process and writes it as PNG.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

// Convert always removes srcPath, whatever the outcome. The PNG keeps the source
// dimensions.
func (l *Local) Convert(ctx context.Context, srcPath, dstPath string) error {
	defer removeSource(srcPath)

	img, err := imaging.Open(srcPath)
	if err != nil {
		return &domain.ConversionError{Kind: domain.ConversionFailed, Message: "decoding sticker image", Err: err}
	}

	err = writeAtomic(dstPath, func(w io.Writer) error {
		return imaging.Encode(w, img, imaging.PNG)
	})
	if err != nil {
		return &domain.ConversionError{Kind: domain.ConversionFailed, Message: "encoding png", Err: err}
	}

	if info, err := os.Stat(dstPath); err == nil {
		slog.DebugContext(ctx, "Converted sticker locally",
			"dst", dstPath,
			"width", img.Bounds().Dx(),
			"height", img.Bounds().Dy(),
			"size", humanize.Bytes(uint64(info.Size())),
		)
	}
	return nil
}

func (l *Local) String() string {
	return "local"
}

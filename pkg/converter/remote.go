package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dskvich/sticker-pack-bot/pkg/cloudconvert"
	"github.com/dskvich/sticker-pack-bot/pkg/domain"
	"github.com/dskvich/sticker-pack-bot/pkg/resilience"
)

// defaultRetryAfter is suggested to the user when the provider is unavailable but did
// not say for how long.
const defaultRetryAfter = 60 * time.Second

var errUnexpectedJob = errors.New("unexpected job shape")

type ConversionAPI interface {
	CreateJob(ctx context.Context, req cloudconvert.JobRequest) (*cloudconvert.Job, error)
	Upload(ctx context.Context, form *cloudconvert.UploadForm, filename string, file io.Reader) error
	WaitJob(ctx context.Context, jobID string) (*cloudconvert.Job, error)
	Download(ctx context.Context, url string, w io.Writer) error
}

// Remote converts through the CloudConvert API.
type Remote struct {
	api            ConversionAPI
	configured     bool
	breaker        *gobreaker.CircuitBreaker[struct{}]
	breakerTimeout time.Duration
}

// NewRemote returns a converter that refuses to run with an empty apiKey, reporting
// it as invalid configuration to the user instead of failing at startup.
func NewRemote(api ConversionAPI, apiKey string, breakerCfg resilience.BreakerConfig) *Remote {
	breakerCfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		// A bad sticker says nothing about the health of the provider.
		switch classify(err).Kind {
		case domain.ConversionBadRequest, domain.ConversionUnconvertible:
			return true
		}
		return false
	}

	return &Remote{
		api:            api,
		configured:     apiKey != "",
		breaker:        resilience.NewBreaker[struct{}](breakerCfg),
		breakerTimeout: breakerCfg.Timeout,
	}
}

// Convert always removes srcPath, whatever the outcome.
func (r *Remote) Convert(ctx context.Context, srcPath, dstPath string) error {
	defer removeSource(srcPath)

	if !r.configured {
		return &domain.ConversionError{Kind: domain.ConversionInvalidConfig, Message: "cloudconvert api key is not set"}
	}

	_, err := r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.convert(ctx, srcPath, dstPath)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ConversionError{
			Kind:       domain.ConversionTemporarilyUnavailable,
			Message:    "too many recent failures",
			RetryAfter: r.breakerTimeout,
			Err:        err,
		}
	}
	return classify(err)
}

func (r *Remote) convert(ctx context.Context, srcPath, dstPath string) error {
	job, err := r.api.CreateJob(ctx, cloudconvert.NewConversionJob("webp", "png"))
	if err != nil {
		return err
	}

	importTask, ok := job.Task(cloudconvert.TaskImport)
	if !ok || importTask.Result == nil || importTask.Result.Form == nil {
		return fmt.Errorf("job %s has no upload form: %w", job.ID, errUnexpectedJob)
	}

	if err := r.upload(ctx, importTask.Result.Form, srcPath); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Uploaded sticker to conversion API", "job_id", job.ID)

	job, err = r.api.WaitJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if failed, ok := job.FailedTask(); ok {
		return &cloudconvert.TaskError{Task: failed.Name, Code: failed.Code, Message: failed.Message}
	}

	exportTask, ok := job.Task(cloudconvert.TaskExport)
	if !ok || exportTask.Result == nil || len(exportTask.Result.Files) == 0 {
		return fmt.Errorf("job %s finished without an exported file: %w", job.ID, errUnexpectedJob)
	}

	err = writeAtomic(dstPath, func(w io.Writer) error {
		return r.api.Download(ctx, exportTask.Result.Files[0].URL, w)
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Converted sticker with conversion API", "job_id", job.ID, "dst", dstPath)
	return nil
}

func (r *Remote) upload(ctx context.Context, form *cloudconvert.UploadForm, srcPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening downloaded sticker: %w", err)
	}
	defer f.Close()

	return r.api.Upload(ctx, form, filepath.Base(srcPath), f)
}

func (r *Remote) String() string {
	return "cloudconvert"
}

func classify(err error) *domain.ConversionError {
	var convErr *domain.ConversionError
	if errors.As(err, &convErr) {
		return convErr
	}

	var taskErr *cloudconvert.TaskError
	if errors.As(err, &taskErr) {
		return &domain.ConversionError{Kind: domain.ConversionUnconvertible, Message: taskErr.Message, Err: err}
	}

	var apiErr *cloudconvert.APIError
	if errors.As(err, &apiErr) {
		e := &domain.ConversionError{Message: apiErr.Message, Err: err}
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			e.Kind = domain.ConversionInvalidConfig
		case http.StatusBadRequest:
			e.Kind = domain.ConversionBadRequest
		case http.StatusUnprocessableEntity:
			e.Kind = domain.ConversionUnconvertible
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			e.Kind = domain.ConversionTemporarilyUnavailable
			e.RetryAfter = apiErr.RetryAfter
			if e.RetryAfter <= 0 {
				e.RetryAfter = defaultRetryAfter
			}
		default:
			e.Kind = domain.ConversionProviderError
		}
		return e
	}

	if errors.Is(err, errUnexpectedJob) {
		return &domain.ConversionError{Kind: domain.ConversionProviderError, Message: "unexpected answer from conversion api", Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.ConversionError{Kind: domain.ConversionTransport, Message: "request cancelled", Err: err}
	}

	// Anything left never got an answer from the provider or could not be stored.
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return &domain.ConversionError{Kind: domain.ConversionFailed, Message: "local file error", Err: err}
	}
	return &domain.ConversionError{Kind: domain.ConversionTransport, Message: "cannot reach conversion api", Err: err}
}

package reportq

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNoActiveReport = errors.New("reportq: no report awaiting confirmation")
	ErrClosed         = errors.New("reportq: queue stopped")
	ErrInvalidRequest = errors.New("reportq: invalid report request")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusMenuOpened Status = "menu_opened"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Request is the manual-report payload sent by the popup.
type Request struct {
	Fingerprint string  `json:"commentId" validate:"required,max=512"`
	Author      string  `json:"username" validate:"max=256"`
	Text        string  `json:"text" validate:"max=10000"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=100"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report field names the way the popup sends them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the payload bounds. Failures wrap ErrInvalidRequest.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%w: %s must satisfy %s=%s", ErrInvalidRequest, fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %s is %s", ErrInvalidRequest, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// Entry is one queued report.
type Entry struct {
	Request
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	EnqueuedAt  time.Time  `json:"addedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

func (e Entry) active() bool {
	return e.Status == StatusProcessing || e.Status == StatusMenuOpened
}

// Snapshot is a read-only view of the queue.
type Snapshot struct {
	IsReporting bool    `json:"isReporting"`
	Current     *Entry  `json:"currentReport"`
	QueueLength int     `json:"queueLength"`
	Queue       []Entry `json:"queue"`
}

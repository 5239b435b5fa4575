// Package router accepts operator commands and delegates them to the scan
// engine, the report queue and the record store. Every command is
// acknowledged synchronously; long work reports back through notifications.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/comment-radar/services/radar/internal/comment"
	"github.com/example/comment-radar/services/radar/internal/page"
	"github.com/example/comment-radar/services/radar/internal/reconcile"
	"github.com/example/comment-radar/services/radar/internal/reportq"
	"github.com/example/comment-radar/services/radar/internal/scan"
)

// Actions. The values are the wire names the popup sends.
const (
	ActionForceScan         = "forceScan"
	ActionManualReport      = "manualReport"
	ActionCompleteReport    = "completeCurrentReport"
	ActionCancelReport      = "cancelCurrentReport"
	ActionQueueStatus       = "getQueueStatus"
	ActionClearQueue        = "clearQueue"
	ActionPing              = "ping"
	ActionGetLogs           = "getLogs"
	ActionClearLogs         = "clearLogs"
	ActionCheckReportStatus = "checkReportStatus"
	ActionGetStats          = "getStats"
)

var (
	ErrUnknownAction = errors.New("router: unknown action")
	ErrBadCommand    = errors.New("router: malformed command")
)

// Command is the inbound message.
type Command struct {
	Action      string           `json:"action"`
	CommentData *reportq.Request `json:"commentData,omitempty"`
	CommentID   string           `json:"commentId,omitempty"`
}

type Scanner interface {
	ScanAll(ctx context.Context) (scan.Result, error)
}

type Queue interface {
	Enqueue(ctx context.Context, req reportq.Request) (int, bool, error)
	Complete(ctx context.Context) (*reportq.Entry, error)
	Cancel(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (reportq.Snapshot, error)
}

type Logs interface {
	Records(ctx context.Context) ([]comment.Record, error)
	IsReported(ctx context.Context, fingerprint string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (reconcile.Stats, error)
}

type PageInfo interface {
	Info(ctx context.Context) (page.Info, error)
}

type Router struct {
	// base outlives single requests; background scans run under it.
	base    context.Context
	scanner Scanner
	queue   Queue
	logs    Logs
	page    PageInfo
	log     *zap.Logger
}

func New(base context.Context, scanner Scanner, queue Queue, logs Logs, p PageInfo, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{base: base, scanner: scanner, queue: queue, logs: logs, page: p, log: log}
}

type statusAck struct {
	Status string `json:"status"`
}

type queuedAck struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queuePosition"`
	CommentID     string `json:"commentId"`
	Added         bool   `json:"added"`
}

type completedAck struct {
	Status      string         `json:"status"`
	NextInQueue *reportq.Entry `json:"nextInQueue"`
}

type currentReport struct {
	Username string         `json:"username"`
	Status   reportq.Status `json:"status"`
}

type pingAck struct {
	Status        string         `json:"status"`
	PageTitle     string         `json:"pageTitle"`
	URL           string         `json:"url,omitempty"`
	VideoID       string         `json:"videoId"`
	CommentsCount int            `json:"commentsCount"`
	CurrentReport *currentReport `json:"currentReport"`
}

type logsAck struct {
	Logs []comment.Record `json:"logs"`
}

type reportStatusAck struct {
	CommentID string `json:"commentId"`
	Reported  bool   `json:"reported"`
}

// Handle runs cmd and returns its acknowledgement.
func (r *Router) Handle(ctx context.Context, cmd Command) (any, error) {
	log := r.log.With(zap.String("action", cmd.Action))
	switch cmd.Action {
	case ActionForceScan:
		go func() {
			if _, err := r.scanner.ScanAll(r.base); err != nil && r.base.Err() == nil {
				log.Warn("forced scan failed", zap.Error(err))
			}
		}()
		return statusAck{Status: "scanning_started"}, nil

	case ActionManualReport:
		if cmd.CommentData == nil {
			return nil, fmt.Errorf("%w: commentData is required", ErrBadCommand)
		}
		pos, added, err := r.queue.Enqueue(ctx, *cmd.CommentData)
		if err != nil {
			if errors.Is(err, reportq.ErrInvalidRequest) {
				return nil, fmt.Errorf("%w: %v", ErrBadCommand, err)
			}
			return nil, err
		}
		return queuedAck{Status: "queued", QueuePosition: pos, CommentID: cmd.CommentData.Fingerprint, Added: added}, nil

	case ActionCompleteReport:
		next, err := r.queue.Complete(ctx)
		if errors.Is(err, reportq.ErrNoActiveReport) {
			return completedAck{Status: "no_active_report"}, nil
		}
		if err != nil {
			return nil, err
		}
		return completedAck{Status: "report_completed", NextInQueue: next}, nil

	case ActionCancelReport:
		if _, err := r.queue.Cancel(ctx); err != nil {
			return nil, err
		}
		return statusAck{Status: "report_cancelled"}, nil

	case ActionQueueStatus:
		return r.queue.Snapshot(ctx)

	case ActionClearQueue:
		if err := r.queue.Clear(ctx); err != nil {
			return nil, err
		}
		return statusAck{Status: "queue_cleared"}, nil

	case ActionPing:
		return r.ping(ctx)

	case ActionGetLogs:
		records, err := r.logs.Records(ctx)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []comment.Record{}
		}
		return logsAck{Logs: records}, nil

	case ActionClearLogs:
		if err := r.logs.Clear(ctx); err != nil {
			return nil, err
		}
		return statusAck{Status: "logs_cleared"}, nil

	case ActionCheckReportStatus:
		if cmd.CommentID == "" {
			return nil, fmt.Errorf("%w: commentId is required", ErrBadCommand)
		}
		reported, err := r.logs.IsReported(ctx, cmd.CommentID)
		if err != nil {
			return nil, err
		}
		return reportStatusAck{CommentID: cmd.CommentID, Reported: reported}, nil

	case ActionGetStats:
		return r.logs.Stats(ctx)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func (r *Router) ping(ctx context.Context) (pingAck, error) {
	ack := pingAck{Status: "alive"}
	info, err := r.page.Info(ctx)
	if err != nil {
		r.log.Warn("page info failed", zap.Error(err))
	} else {
		ack.PageTitle = info.Title
		ack.URL = info.URL
		ack.VideoID = info.VideoID
		ack.CommentsCount = info.CommentsCount
	}
	snap, err := r.queue.Snapshot(ctx)
	if err != nil {
		return pingAck{}, err
	}
	if snap.Current != nil {
		ack.CurrentReport = &currentReport{Username: snap.Current.Author, Status: snap.Current.Status}
	}
	return ack, nil
}

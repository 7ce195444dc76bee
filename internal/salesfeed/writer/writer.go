package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/storefront-backend/internal/salesfeed/types"
	pkgbigquery "github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls the sales feed writer behavior.
type Config struct {
	SalesTable  string
	StatusTable string
	BatchSize   int
	RetryPolicy RetryPolicy
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter inserts sales feed rows into BigQuery with retries and optional batching.
type BigQueryWriter struct {
	client      tableInserter
	salesTable  string
	statusTable string
	batchSize   int
	retry       RetryPolicy

	salesBuffer  []types.SalesEventRow
	statusBuffer []types.OrderStatusFactRow
}

// New creates a new BigQueryWriter backed by a shared client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	sales := strings.TrimSpace(cfg.SalesTable)
	if sales == "" {
		return nil, errors.New("sales table is required")
	}
	statusTable := strings.TrimSpace(cfg.StatusTable)
	if statusTable == "" {
		return nil, errors.New("status table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &BigQueryWriter{
		client:      client,
		salesTable:  sales,
		statusTable: statusTable,
		batchSize:   batchSize,
		retry:       retry,
	}, nil
}

// InsertSale writes a single sales event row (flushes when batch size reached).
func (w *BigQueryWriter) InsertSale(ctx context.Context, row types.SalesEventRow) error {
	w.salesBuffer = append(w.salesBuffer, row)
	if len(w.salesBuffer) >= w.batchSize {
		return w.flushSales(ctx)
	}
	return nil
}

// InsertStatusFact writes a single order status fact row (flushes when batch size reached).
func (w *BigQueryWriter) InsertStatusFact(ctx context.Context, row types.OrderStatusFactRow) error {
	w.statusBuffer = append(w.statusBuffer, row)
	if len(w.statusBuffer) >= w.batchSize {
		return w.flushStatusFacts(ctx)
	}
	return nil
}

// Flush writes any buffered rows immediately. Both tables are attempted so a
// failing sales insert does not starve the status facts.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	return multierr.Combine(
		w.flushSales(ctx),
		w.flushStatusFacts(ctx),
	)
}

func (w *BigQueryWriter) flushSales(ctx context.Context) error {
	if len(w.salesBuffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.salesBuffer))
	for i := range w.salesBuffer {
		rows[i] = &w.salesBuffer[i]
	}

	if err := w.insertWithRetry(ctx, w.salesTable, rows); err != nil {
		return err
	}
	w.salesBuffer = w.salesBuffer[:0]
	return nil
}

func (w *BigQueryWriter) flushStatusFacts(ctx context.Context) error {
	if len(w.statusBuffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.statusBuffer))
	for i := range w.statusBuffer {
		rows[i] = &w.statusBuffer[i]
	}

	if err := w.insertWithRetry(ctx, w.statusTable, rows); err != nil {
		return err
	}
	w.statusBuffer = w.statusBuffer[:0]
	return nil
}

func (w *BigQueryWriter) insertWithRetry(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	attempts := 0
	backoff := w.retry.InitialBackoff

	for {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= w.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows: %w", table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		backoff = minDuration(backoff*2, w.retry.MaximumBackoff)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil || len(rowErr.Errors) == 0 {
			return false
		}
		for _, inner := range rowErr.Errors {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}

// EncodeJSON serializes the provided payload so it can be stored in BigQuery JSON columns.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	case []byte:
		if len(value) == 0 {
			return cbigquery.NullJSON{}, nil
		}
		return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}, nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	if len(marshaled) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(marshaled)}, nil
}

package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/strrl/castor/internal/db"
	"github.com/strrl/castor/pkg/models"
)

const (
	countQueryTimeout   = 30 * time.Second
	messageQueryTimeout = 15 * time.Second
)

// Stored files are arrays of messages; any of the three text shapes may
// be present, missing keys read as NULL. An empty parts list joins to ''
// and falls through to content.
const messageColumns = `{'role': 'VARCHAR', 'parts': 'STRUCT(text VARCHAR)[]', 'content': 'VARCHAR', 'text': 'VARCHAR'}`

// MessageRow is one stored message as read by DuckDB
type MessageRow struct {
	Role string
	Text string
}

func (r MessageRow) toModel() models.Message {
	role := models.RoleModel
	if r.Role == string(models.RoleUser) {
		role = models.RoleUser
	}
	return models.NewMessage(role, r.Text)
}

type queryResult[T any] struct {
	Data  T
	Error error
}

// runAsync runs fn on its own goroutine and delivers the result unless
// ctx is cancelled first
func runAsync[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) <-chan queryResult[T] {
	resultChan := make(chan queryResult[T], 1)

	go func() {
		defer close(resultChan)

		queryCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		data, err := fn(queryCtx)
		select {
		case resultChan <- queryResult[T]{Data: data, Error: err}:
		case <-ctx.Done():
		}
	}()

	return resultChan
}

func await[T any](ctx context.Context, ch <-chan queryResult[T]) (T, error) {
	var zero T
	select {
	case result, ok := <-ch:
		if !ok {
			return zero, ctx.Err()
		}
		if result.Error != nil {
			return zero, result.Error
		}
		return result.Data, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// FetchMessageCountsAsync counts stored messages per history file
// matching glob, keyed by file base name
func FetchMessageCountsAsync(ctx context.Context, database *sql.DB, logger *zap.Logger, glob string) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT
			filename,
			COUNT(*) AS message_count
		FROM read_json(%s,
			format = 'array',
			filename = true,
			columns = %s
		)
		GROUP BY filename
	`, db.Literal(glob), messageColumns)

	return await(ctx, runAsync(ctx, countQueryTimeout, func(ctx context.Context) (map[string]int, error) {
		rows, err := database.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to execute count query: %w", err)
		}
		defer rows.Close()

		counts := make(map[string]int)
		for rows.Next() {
			var filename string
			var count int
			if err := rows.Scan(&filename, &count); err != nil {
				logger.Warn("skipping unreadable count row", zap.String("glob", glob), zap.Error(err))
				continue
			}
			counts[filepath.Base(filename)] = count
		}
		return counts, rows.Err()
	}))
}

// FetchMessagesAsync reads the messages of one history file in order
func FetchMessagesAsync(ctx context.Context, database *sql.DB, logger *zap.Logger, path string) ([]MessageRow, error) {
	query := fmt.Sprintf(`
		SELECT
			COALESCE(role, '') AS role,
			COALESCE(
				NULLIF(array_to_string(list_transform(parts, p -> p.text), ''), ''),
				content,
				"text",
				''
			) AS body
		FROM read_json(%s,
			format = 'array',
			columns = %s
		)
	`, db.Literal(path), messageColumns)

	return await(ctx, runAsync(ctx, messageQueryTimeout, func(ctx context.Context) ([]MessageRow, error) {
		rows, err := database.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to execute messages query: %w", err)
		}
		defer rows.Close()

		var messages []MessageRow
		for rows.Next() {
			var row MessageRow
			if err := rows.Scan(&row.Role, &row.Text); err != nil {
				logger.Warn("skipping unreadable message row", zap.String("path", path), zap.Error(err))
				continue
			}
			messages = append(messages, row)
		}
		return messages, rows.Err()
	}))
}

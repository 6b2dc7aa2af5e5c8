package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 50*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT * FROM orders", 3 }
	ctx := context.Background()

	q.Trace(ctx, time.Now(), stmt, nil)
	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected fast and not-found statements to stay quiet, got %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), "SELECT * FROM orders") {
		t.Fatalf("expected slow query line, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("syntax error"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failure line, got %s", buf.String())
	}
}

func TestQueryLoggerSilentMode(t *testing.T) {
	buf := &bytes.Buffer{}
	q := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), time.Millisecond).
		LogMode(gormlogger.Silent)

	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("expected silent mode to drop output, got %s", buf.String())
	}
}

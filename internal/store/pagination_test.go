package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	original := OrderCursor{
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ID:        uuid.New(),
	}

	decoded, err := DecodeCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) || decoded.ID != original.ID {
		t.Errorf("Expected %+v, got %+v", original, decoded)
	}
}

func TestDecodeEmptyCursorSortsLast(t *testing.T) {
	cursor, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !cursor.CreatedAt.After(time.Now()) {
		t.Error("Empty cursor should start after the newest row")
	}
	if cursor.ID != maxUUID {
		t.Errorf("Expected max uuid, got %s", cursor.ID)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("%%%"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got %v", err)
	}
}

func TestNewOffsetPage(t *testing.T) {
	tests := []struct {
		total     int64
		pageSize  int
		wantPages int
	}{
		{0, 10, 0},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		page := NewOffsetPage[int](nil, tt.total, 1, tt.pageSize)
		if page.TotalPages != tt.wantPages {
			t.Errorf("total=%d size=%d: expected %d pages, got %d", tt.total, tt.pageSize, tt.wantPages, page.TotalPages)
		}
		if page.Items == nil {
			t.Error("Items should never be nil")
		}
	}

	if Offset(3, 20) != 40 || Offset(0, 20) != 0 {
		t.Error("Unexpected offset computation")
	}
}

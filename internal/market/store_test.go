package market

import (
	"errors"
	"testing"
	"time"
)

func barAt(minute int, close float64) Bar {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
	return Bar{
		Timestamp: ts,
		Open:      close - 0.5,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    1000,
	}
}

func TestStoreAppendOrdered(t *testing.T) {
	s := NewStore("EURUSD")

	for i := 0; i < 5; i++ {
		if err := s.Append(barAt(i*15, 100+float64(i))); err != nil {
			t.Fatalf("append bar %d: %v", i, err)
		}
	}

	if s.Len() != 5 {
		t.Errorf("expected 5 bars, got %d", s.Len())
	}

	last, ok := s.Last()
	if !ok || last.Close != 104 {
		t.Errorf("expected last close 104, got %v (ok=%v)", last.Close, ok)
	}
}

func TestStoreRejectsOutOfOrderBar(t *testing.T) {
	s := NewStore("EURUSD")

	if err := s.Append(barAt(15, 100)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Older timestamp must be rejected without mutating the store.
	err := s.Append(barAt(0, 99))
	if !errors.Is(err, ErrOutOfOrderBar) {
		t.Fatalf("expected ErrOutOfOrderBar, got %v", err)
	}

	// Duplicate timestamp is also a regression.
	err = s.Append(barAt(15, 101))
	if !errors.Is(err, ErrOutOfOrderBar) {
		t.Fatalf("expected ErrOutOfOrderBar for duplicate timestamp, got %v", err)
	}

	if s.Len() != 1 {
		t.Errorf("store mutated by rejected append: len=%d", s.Len())
	}
}

func TestNewStoreWithBarsValidates(t *testing.T) {
	bars := []Bar{barAt(0, 100), barAt(15, 101), barAt(15, 102)}

	_, err := NewStoreWithBars("GBPUSD", bars)
	if !errors.Is(err, ErrOutOfOrderBar) {
		t.Fatalf("expected ErrOutOfOrderBar, got %v", err)
	}
}

func TestStoreTrimKeepsNewest(t *testing.T) {
	s := NewStore("EURUSD")
	for i := 0; i < 10; i++ {
		if err := s.Append(barAt(i*15, 100+float64(i))); err != nil {
			t.Fatalf("append bar %d: %v", i, err)
		}
	}

	s.Trim(4)

	if s.Len() != 4 {
		t.Fatalf("expected 4 bars after trim, got %d", s.Len())
	}
	if s.At(0).Close != 106 {
		t.Errorf("oldest kept close = %v, want 106", s.At(0).Close)
	}

	// Trimming below the current length is a no-op.
	s.Trim(10)
	if s.Len() != 4 {
		t.Errorf("trim to a larger size changed the store: %d bars", s.Len())
	}
}

func TestATR(t *testing.T) {
	// Constant 2.0 true range: each bar spans close-1..close+1 with close
	// stepping by 1, so TR = max(2, |high-prevClose|, |low-prevClose|) = 2.
	bars := make([]Bar, 20)
	for i := range bars {
		bars[i] = barAt(i*15, 100+float64(i))
	}

	atr := ATR(bars, len(bars)-1, 14)
	if atr < 1.99 || atr > 2.01 {
		t.Errorf("expected ATR near 2.0, got %f", atr)
	}
}

func TestATRInsufficientHistory(t *testing.T) {
	bars := []Bar{barAt(0, 100), barAt(15, 101)}

	if atr := ATR(bars, 1, 14); atr != 0 {
		t.Errorf("expected 0 for short window, got %f", atr)
	}
}

package irc

import "testing"

func TestInputInsertAndText(t *testing.T) {
	in := NewInput(16, 4)
	if !in.Insert([]byte("hello")) {
		t.Fatal("insert failed")
	}
	if in.Text() != "hello" {
		t.Errorf("Text() = %q", in.Text())
	}
	if in.Len() != 5 {
		t.Errorf("Len() = %d", in.Len())
	}
}

func TestInputInsertOverflow(t *testing.T) {
	in := NewInput(4, 4)
	if !in.Insert([]byte("abcd")) {
		t.Fatal("expected insert to fit exactly")
	}
	if in.Insert([]byte("x")) {
		t.Error("expected insert to fail when buffer is full")
	}
}

func TestInputCursorMotion(t *testing.T) {
	in := NewInput(16, 4)
	in.Insert([]byte("abc"))
	if !in.CursorBack() || !in.CursorBack() {
		t.Fatal("cursor back failed")
	}
	if !in.Insert([]byte("X")) {
		t.Fatal("insert at cursor failed")
	}
	if in.Text() != "aXbc" {
		t.Errorf("Text() = %q", in.Text())
	}
	if in.CursorForw(); in.head != 3 {
		t.Errorf("head = %d", in.head)
	}
}

func TestInputCursorBoundary(t *testing.T) {
	in := NewInput(16, 4)
	if in.CursorBack() {
		t.Error("CursorBack at start should fail")
	}
	if in.CursorForw() {
		t.Error("CursorForw at end should fail")
	}
}

func TestInputDelete(t *testing.T) {
	in := NewInput(16, 4)
	in.Insert([]byte("abc"))
	if !in.DeleteBack() {
		t.Fatal("delete back failed")
	}
	if in.Text() != "ab" {
		t.Errorf("Text() = %q", in.Text())
	}
	in.CursorBack()
	if !in.DeleteForw() {
		t.Fatal("delete forw failed")
	}
	if in.Text() != "a" {
		t.Errorf("Text() = %q", in.Text())
	}
}

func TestInputResetEmpty(t *testing.T) {
	in := NewInput(16, 4)
	if in.Reset() {
		t.Error("Reset on empty buffer should return false")
	}
}

func TestInputHistoryPushIdempotentOnEmpty(t *testing.T) {
	in := NewInput(16, 4)
	if in.HistoryPush() {
		t.Error("HistoryPush on empty buffer should return false (testable property 6)")
	}
}

func TestInputHistoryPushAndBack(t *testing.T) {
	in := NewInput(16, 4)
	in.Insert([]byte("first"))
	if !in.HistoryPush() {
		t.Fatal("expected push")
	}
	if in.Len() != 0 {
		t.Error("working buffer should be empty after push")
	}
	in.Insert([]byte("second"))
	in.HistoryPush()

	if !in.HistoryBack() || in.Text() != "second" {
		t.Errorf("HistoryBack() = %q, want second", in.Text())
	}
	if !in.HistoryBack() || in.Text() != "first" {
		t.Errorf("HistoryBack() = %q, want first", in.Text())
	}
	if in.HistoryBack() {
		t.Error("HistoryBack should fail at oldest entry")
	}
}

func TestInputHistoryForwRestoresWorkingBuffer(t *testing.T) {
	in := NewInput(16, 4)
	in.Insert([]byte("saved"))
	in.HistoryPush()
	in.Insert([]byte("typing"))

	in.HistoryBack()
	if in.Text() != "saved" {
		t.Fatalf("Text() = %q", in.Text())
	}
	if !in.HistoryForw() {
		t.Fatal("expected HistoryForw to succeed")
	}
	if in.Text() != "typing" {
		t.Errorf("Text() = %q, want restored working buffer", in.Text())
	}
	if in.HistoryForw() {
		t.Error("HistoryForw should fail once already live")
	}
}

func TestInputHistoryRingOverwritesOldest(t *testing.T) {
	in := NewInput(16, 2)
	in.Insert([]byte("a"))
	in.HistoryPush()
	in.Insert([]byte("b"))
	in.HistoryPush()
	in.Insert([]byte("c"))
	in.HistoryPush()

	in.HistoryBack()
	if in.Text() != "c" {
		t.Fatalf("Text() = %q", in.Text())
	}
	in.HistoryBack()
	if in.Text() != "b" {
		t.Fatalf("Text() = %q, want b (a should have been overwritten)", in.Text())
	}
	if in.HistoryBack() {
		t.Error("expected only 2 live entries")
	}
}

func TestInputComplete(t *testing.T) {
	in := NewInput(32, 4)
	in.Insert([]byte(" abc ab"))

	ok := in.Complete(func(word string, first bool) (string, bool) {
		if word != "ab" || first {
			t.Errorf("word = %q, first = %v", word, first)
		}
		return "xyxyxy", true
	})
	if !ok {
		t.Fatal("expected completion to succeed")
	}
	if in.Text() != " abc xyxyxy" {
		t.Errorf("Text() = %q", in.Text())
	}
	if in.head != len(in.Text()) {
		t.Errorf("cursor should be at end of replacement, head=%d text=%q", in.head, in.Text())
	}
}

func TestInputCompleteNoMatch(t *testing.T) {
	in := NewInput(32, 4)
	in.Insert([]byte("hello"))
	before := in.Text()
	if in.Complete(func(string, bool) (string, bool) { return "", false }) {
		t.Error("expected Complete to return false")
	}
	if in.Text() != before {
		t.Errorf("buffer should be unchanged, got %q", in.Text())
	}
}

func TestInputFrameWithinWindow(t *testing.T) {
	in := NewInput(64, 4)
	in.Insert([]byte("0123456789"))
	slice, col := in.Frame(20)
	if slice != "0123456789" || col != 10 {
		t.Errorf("Frame() = %q, %d", slice, col)
	}
}

func TestInputFrameSlidesWithCursor(t *testing.T) {
	in := NewInput(64, 4)
	in.Insert([]byte("0123456789"))
	slice, col := in.Frame(5)
	if col < 0 || col >= 5 {
		t.Fatalf("cursor column %d outside window [0,5)", col)
	}
	if len(slice) > 5 {
		t.Errorf("slice %q longer than window", slice)
	}
}

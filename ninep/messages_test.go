package ninep

import (
	"bytes"
	"testing"
)

func TestEncodesTRead(t *testing.T) {
	m := make([]byte, 2048)
	Tread(m).fill(1, 2, 3, 4)
	msg := Tread(Tread(m).Bytes())
	if msg.Tag() != 1 {
		t.Fatalf("expected tag to match: %d != %d", msg.Tag(), 1)
	}
	if msg.Fid() != 2 {
		t.Fatalf("expected fid to match: %d != %d", msg.Fid(), 2)
	}
	if msg.Offset() != 3 {
		t.Fatalf("expected offset to match: %d != %d", msg.Offset(), 3)
	}
	if msg.Count() != 4 {
		t.Fatalf("expected count to match: %d != %d", msg.Count(), 4)
	}
}

func TestEncodesTauthRauth(t *testing.T) {
	m := make([]byte, 256)
	Tauth(m).fill(7, 42, "glenda", "mount")
	tauth := Tauth(Tauth(m).Bytes())
	if tauth.Tag() != 7 {
		t.Fatalf("expected tag to match: %d != 7", tauth.Tag())
	}
	if tauth.Afid() != 42 {
		t.Fatalf("expected afid to match: %d != 42", tauth.Afid())
	}
	if tauth.Uname() != "glenda" {
		t.Fatalf("expected uname to match: %q != %q", tauth.Uname(), "glenda")
	}
	if tauth.Aname() != "mount" {
		t.Fatalf("expected aname to match: %q != %q", tauth.Aname(), "mount")
	}

	rm := make([]byte, 64)
	aqid := NewQid().Fill(QT_AUTH, 0, 99)
	Rauth(rm).fill(7, aqid)
	rauth := Rauth(Rauth(rm).Bytes())
	if rauth.Tag() != 7 {
		t.Fatalf("expected tag to match: %d != 7", rauth.Tag())
	}
	if rauth.Aqid().Type() != QT_AUTH {
		t.Fatalf("expected aqid type to round trip as QT_AUTH")
	}
	if rauth.Aqid().Path() != 99 {
		t.Fatalf("expected aqid path to round trip: %d != 99", rauth.Aqid().Path())
	}
}

// The protocol caps a single Twalk at MAXWELEM (16) name elements; a
// server is expected to reject a request carrying more. The wire codec
// itself places no limit on NumWname, so this exercises the boundary at
// both sides: 16 elements round trip cleanly, 17 still decode (nothing in
// the codec truncates them) but NumWname reports a count a conforming
// client must never send in one message.
func TestTwalkMaxElemBoundary(t *testing.T) {
	mkNames := func(n int) []string {
		names := make([]string, n)
		for i := range names {
			names[i] = "a"
		}
		return names
	}

	t.Run("16 elements", func(t *testing.T) {
		names := mkNames(MAXWELEM)
		m := make([]byte, 2048)
		Twalk(m).fill(1, 2, 3, names)
		msg := Twalk(Twalk(m).Bytes())
		if int(msg.NumWname()) != MAXWELEM {
			t.Fatalf("expected NumWname to match: %d != %d", msg.NumWname(), MAXWELEM)
		}
		if got := msg.Wnames(); len(got) != MAXWELEM {
			t.Fatalf("expected %d wnames, got %d", MAXWELEM, len(got))
		}
	})

	t.Run("17 elements exceeds MAXWELEM", func(t *testing.T) {
		names := mkNames(MAXWELEM + 1)
		m := make([]byte, 2048)
		Twalk(m).fill(1, 2, 3, names)
		msg := Twalk(Twalk(m).Bytes())
		if int(msg.NumWname()) <= MAXWELEM {
			t.Fatalf("expected NumWname to exceed MAXWELEM, got %d", msg.NumWname())
		}
		if got := msg.Wnames(); len(got) != MAXWELEM+1 {
			t.Fatalf("expected %d wnames, got %d", MAXWELEM+1, len(got))
		}
	})
}

// WriteStat callers use the NoTouch sentinel values to mean "leave this
// field alone"; a fully-synced stat (SyncStat) must report every field as
// NoTouch except the ones the caller actually set.
func TestStatNoTouchSentinels(t *testing.T) {
	s := SyncStat()
	if !s.TypeNoTouch() || !s.DevNoTouch() || !s.ModeNoTouch() ||
		!s.AtimeNoTouch() || !s.MtimeNoTouch() || !s.LengthNoTouch() {
		t.Fatalf("expected SyncStat() to leave all touched-by-default fields as NoTouch")
	}
	if !s.NameNoTouch() || !s.UidNoTouch() || !s.GidNoTouch() || !s.MuidNoTouch() {
		t.Fatalf("expected SyncStat() to leave string fields as NoTouch (empty)")
	}

	s.SetMtime(1234)
	if s.MtimeNoTouch() {
		t.Fatalf("expected Mtime to no longer be NoTouch after SetMtime")
	}
	if !s.LengthNoTouch() {
		t.Fatalf("expected Length to remain NoTouch after an unrelated field was set")
	}
}

// readRequest must reject a frame whose header declares more bytes than
// the connection actually delivers, rather than blocking forever or
// handing a short buffer to an accessor that assumes it's complete.
func TestReadRequestRejectsTruncatedFrame(t *testing.T) {
	full := make([]byte, 64)
	Tstat(full).fill(1, 5)
	full = Tstat(full).Bytes()

	// Claim more bytes than are actually sent.
	truncated := make([]byte, len(full))
	copy(truncated, full)
	bo.PutUint32(truncated[:4], uint32(len(full)+16))

	txn := createServerTransaction(DEFAULT_MAX_MESSAGE_SIZE)
	err := txn.readRequest(bytes.NewReader(truncated))
	if err == nil {
		t.Fatalf("expected an error reading a frame shorter than its declared size")
	}
}

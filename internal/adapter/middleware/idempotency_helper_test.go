package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) (*miniredis.Miniredis, idempStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, idempStore{rdb: rdb}
}

func Test_bodyHash(t *testing.T) {
	data := []byte(`{"face_value":"1000"}`)
	sum := sha256.Sum256(data)
	if got, want := bodyHash(data), hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("bodyHash = %s, want %s", got, want)
	}
}

func Test_nowUTC(t *testing.T) {
	u := nowUTC()
	if u.Location() != time.UTC {
		t.Fatalf("nowUTC location = %v", u.Location())
	}
	if d := time.Since(u); d < 0 || d > 2*time.Second {
		t.Fatalf("nowUTC drift %v", d)
	}
}

func Test_buildKey(t *testing.T) {
	acct, rid := strings.Repeat("b", 32), strings.Repeat("a", 32)
	k := buildKey("POST", "/receivables", acct, rid)
	want := idempPrefix + acct + ":post:/receivables:" + rid
	if k != want {
		t.Fatalf("buildKey = %q, want %q", k, want)
	}
	if buildKey("POST", "/receivables", strings.Repeat("c", 32), rid) == k {
		t.Fatal("keys of different accounts must differ")
	}
}

func Test_validReqID(t *testing.T) {
	for _, s := range []string{
		"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88",
		strings.Repeat("a", 32),
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c88",
	} {
		if !validReqID(s) {
			t.Fatalf("validReqID(%q) = false", s)
		}
	}
	for _, s := range []string{
		"",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8",
		"3f9a6a1b3d544fbe8b3a6b3e8d6b2c880",
		"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
		"3F9A6A1B-3D54-4FBE-8B3A-6B3E8D6B2C88",
		"3f9a6a1b-3d54-9fbe-8b3a-6b3e8d6b2c88",
	} {
		if validReqID(s) {
			t.Fatalf("validReqID(%q) = true", s)
		}
	}
}

func Test_parseAxRequestAt(t *testing.T) {
	sec := time.Now().UTC().Unix()
	ms := time.Now().UTC().UnixMilli()
	cases := []struct {
		raw  string
		want time.Time
	}{
		{strconv.FormatInt(sec, 10), time.Unix(sec, 0).UTC()},
		{strconv.FormatInt(ms, 10), time.UnixMilli(ms).UTC()},
		{"2025-09-05T10:00:00+07:00", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"2025-09-05T03:00:00Z", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"2025-09-05T03:00:00.5Z", time.Date(2025, 9, 5, 3, 0, 0, 5e8, time.UTC)},
	}
	for _, tc := range cases {
		got, err := parseAxRequestAt(tc.raw)
		if err != nil {
			t.Fatalf("parseAxRequestAt(%q): %v", tc.raw, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseAxRequestAt(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"", "not-a-time", "2025-09-05T10:00:00", "1736123456abc"} {
		if _, err := parseAxRequestAt(raw); err == nil {
			t.Fatalf("parseAxRequestAt(%q) should fail", raw)
		}
	}
}

func Test_idempStore_ClaimOnce(t *testing.T) {
	_, s := newStore(t)
	ctx := context.Background()
	key := buildKey("POST", "/receivables", strings.Repeat("b", 32), strings.Repeat("a", 32))
	entry := idempEntry{InProgress: true, BodySHA256: bodyHash([]byte(`{}`)), RequestID: strings.Repeat("a", 32)}

	ok, err := s.claim(ctx, key, entry)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if ttl := s.rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > provisionalLockTTL {
		t.Fatalf("provisional ttl = %v", ttl)
	}
	ok, err = s.claim(ctx, key, entry)
	if err != nil || ok {
		t.Fatalf("second claim: ok=%v err=%v", ok, err)
	}

	got, err := s.load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.InProgress || got.BodySHA256 != entry.BodySHA256 {
		t.Fatalf("loaded %+v", got)
	}
}

func Test_idempStore_FinishAndRelease(t *testing.T) {
	_, s := newStore(t)
	ctx := context.Background()
	key := buildKey("POST", "/escrow/:id/deposit", strings.Repeat("b", 32), strings.Repeat("a", 32))

	final := idempEntry{Code: 201, Body: []byte(`{"ok":true}`)}
	if err := s.finish(ctx, key, final, 5*time.Second); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if ttl := s.rdb.TTL(ctx, key).Val(); ttl <= 0 || ttl > 5*time.Second {
		t.Fatalf("final ttl = %v", ttl)
	}
	got, err := s.load(ctx, key)
	if err != nil || got.Code != 201 || string(got.Body) != `{"ok":true}` || got.InProgress {
		t.Fatalf("load after finish: %+v err=%v", got, err)
	}

	if err := s.release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := s.claim(ctx, key, idempEntry{InProgress: true}); err != nil || !ok {
		t.Fatalf("claim after release: ok=%v err=%v", ok, err)
	}
}

func Test_idempStore_LoadCorrupt(t *testing.T) {
	mr, s := newStore(t)
	key := idempPrefix + "corrupt"
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.load(context.Background(), key); err == nil {
		t.Fatal("load of corrupt entry should fail")
	}
}

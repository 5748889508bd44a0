package ephemeral

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	return NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

type payload struct {
	Owner string `json:"owner"`
	N     int    `json:"n"`
}

func TestPutNXIsExclusive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.PutNX(ctx, "k", payload{Owner: "a", N: 1}, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first PutNX: ok=%v err=%v", ok, err)
	}
	ok, err = s.PutNX(ctx, "k", payload{Owner: "b", N: 2}, time.Minute)
	if err != nil {
		t.Fatalf("second PutNX: %v", err)
	}
	if ok {
		t.Fatalf("second PutNX should observe the existing entry")
	}

	var got payload
	found, err := s.Get(ctx, "k", &got)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Owner != "a" || got.N != 1 {
		t.Fatalf("losing writer clobbered the entry: %+v", got)
	}
}

func TestExpiredEntryIsAbsent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if ok, err := s.PutNX(ctx, "k", payload{Owner: "a"}, 30*time.Second); err != nil || !ok {
		t.Fatalf("PutNX: ok=%v err=%v", ok, err)
	}
	mr.FastForward(31 * time.Second)

	var got payload
	found, err := s.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("entry past TTL must read as absent")
	}

	// and the slot is insertable again
	if ok, err := s.PutNX(ctx, "k", payload{Owner: "b"}, time.Minute); err != nil || !ok {
		t.Fatalf("PutNX after expiry: ok=%v err=%v", ok, err)
	}
}

func TestDel(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if ok, _ := s.PutNX(ctx, "a", payload{}, time.Minute); !ok {
		t.Fatal("PutNX a")
	}
	if ok, _ := s.PutNX(ctx, "b", payload{}, time.Minute); !ok {
		t.Fatal("PutNX b")
	}
	if err := s.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var got payload
	if found, _ := s.Get(ctx, "a", &got); found {
		t.Fatal("a survived Del")
	}
	if found, _ := s.Get(ctx, "b", &got); found {
		t.Fatal("b survived Del")
	}
}

func TestUpdateStagesAtomically(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		var got payload
		if found, err := tx.Get("x", &got); err != nil || found {
			return errors.New("expected x absent")
		}
		if err := tx.Set("x", payload{Owner: "a"}, time.Minute); err != nil {
			return err
		}
		return tx.Set("y", payload{Owner: "a"}, time.Minute)
	}, "x", "y")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	var got payload
	if found, _ := s.Get(ctx, "x", &got); !found {
		t.Fatal("x missing after Update")
	}
	if found, _ := s.Get(ctx, "y", &got); !found {
		t.Fatal("y missing after Update")
	}

	// a failing closure must not write
	wantErr := errors.New("nope")
	err = s.Update(ctx, func(tx *Tx) error {
		tx.Del("x", "y")
		return wantErr
	}, "x", "y")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Update error: %v", err)
	}
	if found, _ := s.Get(ctx, "x", &got); !found {
		t.Fatal("aborted Update deleted x")
	}
}

package lastfm

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"
)

type fakeAuth struct {
	tokenErr   error
	approvedAt time.Time
	attempts   int
}

func (f *fakeAuth) GetToken() (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeAuth) GetAuthURL(token string) string {
	return "https://www.last.fm/api/auth/?api_key=k&token=" + token
}

func (f *fakeAuth) GetSession(string) (string, string, error) {
	f.attempts++
	if f.approvedAt.IsZero() || time.Now().Before(f.approvedAt) {
		return "", "", errors.New("last.fm error 14: token not authorized")
	}
	return "user", "sk", nil
}

func TestAuthorize_SucceedsAfterApproval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		f := &fakeAuth{approvedAt: start.Add(9 * time.Second)}

		var opened string
		sess, err := Authorize(context.Background(), f, func(u string) error {
			opened = u
			return nil
		})
		if err != nil {
			t.Fatalf("Authorize() error = %v", err)
		}
		if sess.Key != "sk" || sess.Username != "user" {
			t.Errorf("session = %+v, want {user sk}", sess)
		}
		if opened == "" {
			t.Error("auth URL was not opened")
		}
		// Polls at 2,4,6,8 fail; 10 succeeds.
		if elapsed := time.Since(start); elapsed != 10*time.Second {
			t.Errorf("elapsed = %v, want 10s", elapsed)
		}
		if f.attempts != 5 {
			t.Errorf("attempts = %d, want 5", f.attempts)
		}
	})
}

func TestAuthorize_TimesOut(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		f := &fakeAuth{}

		_, err := Authorize(context.Background(), f, nil)
		if !errors.Is(err, ErrAuthTimeout) {
			t.Fatalf("Authorize() error = %v, want ErrAuthTimeout", err)
		}
		if elapsed := time.Since(start); elapsed != AuthTimeout {
			t.Errorf("elapsed = %v, want %v", elapsed, AuthTimeout)
		}
		if f.attempts < 59 || f.attempts > 60 {
			t.Errorf("attempts = %d, want ~60", f.attempts)
		}
	})
}

func TestAuthorize_TokenError(t *testing.T) {
	f := &fakeAuth{tokenErr: errors.New("boom")}
	if _, err := Authorize(context.Background(), f, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAuthorize_OpenFailureNotFatal(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := &fakeAuth{approvedAt: time.Now()}
		_, err := Authorize(context.Background(), f, func(string) error {
			return errors.New("no browser")
		})
		if err != nil {
			t.Errorf("Authorize() error = %v", err)
		}
	})
}

func TestAuthorize_Cancelled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := Authorize(ctx, &fakeAuth{}, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Authorize() error = %v, want DeadlineExceeded", err)
		}
	})
}

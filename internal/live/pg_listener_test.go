package live

import (
	"testing"

	"github.com/lib/pq"
)

type recordingNotifier struct {
	users []string
	all   int
}

func (r *recordingNotifier) Notify(userID string) { r.users = append(r.users, userID) }
func (r *recordingNotifier) NotifyAll()           { r.all++ }

func TestPGListener_Dispatch(t *testing.T) {
	rec := &recordingNotifier{}
	l := NewPGListener("postgres://unused", rec)

	l.dispatch(&pq.Notification{Channel: ListChangedChannel, Extra: "u1"})
	l.dispatch(&pq.Notification{Channel: ListChangedChannel, Extra: ""})
	l.dispatch(nil)
	l.dispatch(&pq.Notification{Channel: ListChangedChannel, Extra: "u2"})

	if len(rec.users) != 2 || rec.users[0] != "u1" || rec.users[1] != "u2" {
		t.Errorf("Notify calls = %v, want [u1 u2]", rec.users)
	}
	// 再接続（nil通知）では全購読者を再読み込みする
	if rec.all != 1 {
		t.Errorf("NotifyAll calls = %d, want 1", rec.all)
	}
}

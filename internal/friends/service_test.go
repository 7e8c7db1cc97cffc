package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

func TestAddFriend(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO friendships`).
		WithArgs("p-1", "p-2").
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 2"))

	svc := NewService(mock)
	if err := svc.AddFriend(context.Background(), "p-1", "p-2"); err != nil {
		t.Fatalf("add friend: %v", err)
	}
	if err := svc.AddFriend(context.Background(), "p-1", "p-1"); !errors.Is(err, ErrSelfFriend) {
		t.Fatalf("expected ErrSelfFriend, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRemoveFriend(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM friendships`).
		WithArgs("p-1", "p-2").
		WillReturnResult(pgconn.NewCommandTag("DELETE 2"))

	if err := NewService(mock).RemoveFriend(context.Background(), "p-1", "p-2"); err != nil {
		t.Fatalf("remove friend: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFriends(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT p.id, p.display_name`).
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name", "avatar_url"}).
			AddRow("p-2", "Ana", "").
			AddRow("p-3", "Budi", "https://a/b.png"))

	friends, err := NewService(mock).Friends(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("friends: %v", err)
	}
	if len(friends) != 2 || friends[1].AvatarURL != "https://a/b.png" {
		t.Fatalf("unexpected friends %+v", friends)
	}

	mock.ExpectQuery(`SELECT p.id, p.display_name`).
		WithArgs("p-1").
		WillReturnError(errors.New("db down"))
	if _, err := NewService(mock).Friends(context.Background(), "p-1"); err == nil {
		t.Fatalf("expected error")
	}
}

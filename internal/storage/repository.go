package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-chess-server/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

// Repository is the slice of the relational store the game server touches.
type Repository interface {
	SaveResult(ctx context.Context, winner, loser string) (*domain.MatchResult, error)
	GetProfile(ctx context.Context, login string) (*domain.Profile, error)
	GetFriends(ctx context.Context, login string) ([]domain.Friend, error)
	Close() error
}

type postgres struct {
	db *sql.DB
}

// NewPostgres opens a pooled connection and verifies it with a ping.
func NewPostgres(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewRepository(db), nil
}

func NewRepository(db *sql.DB) Repository {
	return &postgres{db: db}
}

func (r *postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult inserts one games_results row; played_at comes from the column default.
func (r *postgres) SaveResult(ctx context.Context, winner, loser string) (*domain.MatchResult, error) {
	const query = `
		INSERT INTO games_results (winner_login, loser_login)
		VALUES ($1, $2)
		RETURNING id, played_at`

	res := &domain.MatchResult{Winner: winner, Loser: loser}
	if err := r.db.QueryRowContext(ctx, query, winner, loser).Scan(&res.ID, &res.PlayedAt); err != nil {
		return nil, fmt.Errorf("insert game result: %w", err)
	}
	return res, nil
}

func (r *postgres) GetProfile(ctx context.Context, login string) (*domain.Profile, error) {
	const query = `SELECT login, name FROM users WHERE login = $1`

	var p domain.Profile
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(login)).Scan(&p.Login, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	p.Login = strings.TrimSpace(p.Login)
	p.Name = strings.TrimSpace(p.Name)
	return &p, nil
}

func (r *postgres) GetFriends(ctx context.Context, login string) ([]domain.Friend, error) {
	const query = `
		SELECT users.login, users.name
		FROM users
		JOIN friends ON friends.friend_login = users.login
		WHERE friends.user_login = $1
		ORDER BY users.login`

	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(login))
	if err != nil {
		return nil, fmt.Errorf("select friends: %w", err)
	}
	defer rows.Close()

	var friends []domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.Login, &f.Name); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		f.Login = strings.TrimSpace(f.Login)
		f.Name = strings.TrimSpace(f.Name)
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return friends, nil
}

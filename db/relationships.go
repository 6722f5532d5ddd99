package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

const (
	relationshipColumns = `id, owner_id, subject_id, following, requested, showing_reblogs, notifying,
		blocking, muting, languages, created_at, updated_at`

	sqlSelectRelationship = `SELECT ` + relationshipColumns + ` FROM relationships WHERE owner_id = ? AND subject_id = ?`
	sqlUpsertRelationship = `INSERT INTO relationships(id, owner_id, subject_id, following, requested, showing_reblogs,
			notifying, blocking, muting, languages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, subject_id) DO UPDATE SET
			following = excluded.following,
			requested = excluded.requested,
			showing_reblogs = excluded.showing_reblogs,
			notifying = excluded.notifying,
			blocking = excluded.blocking,
			muting = excluded.muting,
			languages = excluded.languages,
			updated_at = excluded.updated_at
		RETURNING id`
	sqlSelectRemoteFollowers = `SELECT ` + actorColumnsA + ` FROM relationships r
		INNER JOIN actors a ON a.id = r.owner_id
		WHERE r.subject_id = ? AND r.following = 1 AND a.instance_id IS NOT NULL
		ORDER BY a.uri`
	sqlSelectFollowRequests = `SELECT ` + actorColumnsA + ` FROM relationships r
		INNER JOIN actors a ON a.id = r.owner_id
		WHERE r.subject_id = ? AND r.requested = 1 AND r.following = 0
		ORDER BY r.updated_at`

	likeColumns = `id, liker_id, liked_id, uri, created_at`

	sqlInsertLike      = `INSERT OR IGNORE INTO likes(id, liker_id, liked_id, uri, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectLike      = `SELECT ` + likeColumns + ` FROM likes WHERE liker_id = ? AND liked_id = ?`
	sqlSelectLikeByURI = `SELECT ` + likeColumns + ` FROM likes WHERE uri = ?`
	sqlDeleteLike      = `DELETE FROM likes WHERE id = ?`

	reactionColumns = `id, author_id, note_id, emoji_id, emoji_text, uri, created_at`

	sqlInsertReaction = `INSERT OR IGNORE INTO reactions(id, author_id, note_id, emoji_id, emoji_text, uri, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectReaction = `SELECT ` + reactionColumns + ` FROM reactions
		WHERE author_id = ? AND note_id = ? AND COALESCE(emoji_id, '') = COALESCE(?, '') AND COALESCE(emoji_text, '') = ?`
	sqlDeleteReaction = `DELETE FROM reactions WHERE id = ?`

	sqlInsertNotification = `INSERT OR IGNORE INTO notifications(id, type, account_id, notified_id, note_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectNotifications = `SELECT id, type, account_id, notified_id, note_id, created_at FROM notifications
		WHERE account_id = ? ORDER BY created_at DESC LIMIT ?`
)

// actorColumnsA is actorColumns qualified with the alias a.
const actorColumnsA = `a.id, a.username, a.display_name, a.bio, a.uri, a.instance_id, a.public_key, a.private_key,
	a.locked, a.indexable, a.inbox_uri, a.outbox_uri, a.followers_uri, a.following_uri, a.avatar_url, a.header_url,
	a.follower_count, a.following_count, a.status_count, a.created_at, a.updated_at`

func scanRelationship(row scanner) (*domain.Relationship, error) {
	var r domain.Relationship
	var languages sql.NullString
	err := row.Scan(&r.Id, &r.OwnerId, &r.SubjectId, &r.Following, &r.Requested, &r.ShowingReblogs, &r.Notifying,
		&r.Blocking, &r.Muting, &languages, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if languages.Valid && languages.String != "" {
		if err := json.Unmarshal([]byte(languages.String), &r.Languages); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (db *DB) ReadRelationship(ctx context.Context, ownerId, subjectId uuid.UUID) (*domain.Relationship, error) {
	return scanRelationship(db.db.QueryRowContext(ctx, sqlSelectRelationship, ownerId, subjectId))
}

// UpsertRelationship stores r keyed by (owner, subject). Counters are left
// to RecountActor.
func (db *DB) UpsertRelationship(ctx context.Context, r *domain.Relationship) error {
	if r.Id == uuid.Nil {
		r.Id = uuid.New()
	}
	r.CreatedAt = utc(r.CreatedAt)
	r.UpdatedAt = time.Now().UTC()

	var languages sql.NullString
	if len(r.Languages) > 0 {
		buf, err := json.Marshal(r.Languages)
		if err != nil {
			return err
		}
		languages = sql.NullString{String: string(buf), Valid: true}
	}

	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, sqlUpsertRelationship,
			r.Id, r.OwnerId, r.SubjectId, r.Following, r.Requested, r.ShowingReblogs, r.Notifying,
			r.Blocking, r.Muting, languages, r.CreatedAt, r.UpdatedAt,
		).Scan(&r.Id)
	})
}

func (db *DB) listActors(ctx context.Context, query string, args ...any) ([]domain.Actor, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, *a)
	}
	return actors, rows.Err()
}

// ListRemoteFollowers returns the remote actors following subjectId.
func (db *DB) ListRemoteFollowers(ctx context.Context, subjectId uuid.UUID) ([]domain.Actor, error) {
	return db.listActors(ctx, sqlSelectRemoteFollowers, subjectId)
}

// ListFollowRequests returns the actors waiting for subjectId to answer
// their follow request.
func (db *DB) ListFollowRequests(ctx context.Context, subjectId uuid.UUID) ([]domain.Actor, error) {
	return db.listActors(ctx, sqlSelectFollowRequests, subjectId)
}

func scanLike(row scanner) (*domain.Like, error) {
	var l domain.Like
	var uri sql.NullString
	if err := row.Scan(&l.Id, &l.LikerId, &l.LikedId, &uri, &l.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	l.URI = uri.String
	return &l, nil
}

func (db *DB) CreateLike(ctx context.Context, l *domain.Like) (bool, error) {
	if l.Id == uuid.Nil {
		l.Id = uuid.New()
	}
	l.CreatedAt = utc(l.CreatedAt)

	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertLike, l.Id, l.LikerId, l.LikedId, nullString(l.URI), l.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n > 0
		return err
	})
	return created, err
}

func (db *DB) ReadLike(ctx context.Context, likerId, likedId uuid.UUID) (*domain.Like, error) {
	return scanLike(db.db.QueryRowContext(ctx, sqlSelectLike, likerId, likedId))
}

func (db *DB) ReadLikeByURI(ctx context.Context, uri string) (*domain.Like, error) {
	return scanLike(db.db.QueryRowContext(ctx, sqlSelectLikeByURI, uri))
}

func (db *DB) DeleteLike(ctx context.Context, id uuid.UUID) error {
	return db.deleteById(ctx, sqlDeleteLike, id)
}

func scanReaction(row scanner) (*domain.Reaction, error) {
	var r domain.Reaction
	var emojiId uuid.NullUUID
	var emojiText, uri sql.NullString
	if err := row.Scan(&r.Id, &r.AuthorId, &r.NoteId, &emojiId, &emojiText, &uri, &r.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	r.EmojiId = uuidPtr(emojiId)
	r.EmojiText = emojiText.String
	r.URI = uri.String
	return &r, nil
}

func (db *DB) CreateReaction(ctx context.Context, r *domain.Reaction) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	if r.Id == uuid.Nil {
		r.Id = uuid.New()
	}
	r.CreatedAt = utc(r.CreatedAt)

	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertReaction, r.Id, r.AuthorId, r.NoteId, nullUUID(r.EmojiId),
			nullString(r.EmojiText), nullString(r.URI), r.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n > 0
		return err
	})
	return created, err
}

func (db *DB) ReadReaction(ctx context.Context, authorId, noteId uuid.UUID, emojiId *uuid.UUID, emojiText string) (*domain.Reaction, error) {
	return scanReaction(db.db.QueryRowContext(ctx, sqlSelectReaction, authorId, noteId, nullUUID(emojiId), emojiText))
}

func (db *DB) DeleteReaction(ctx context.Context, id uuid.UUID) error {
	return db.deleteById(ctx, sqlDeleteReaction, id)
}

func (db *DB) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	n.CreatedAt = utc(n.CreatedAt)
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertNotification, n.Id, n.Type, n.AccountId, n.NotifiedId, nullUUID(n.NoteId), n.CreatedAt)
		return err
	})
}

// ListNotifications returns the newest notifications addressed to the
// local account accountId.
func (db *DB) ListNotifications(ctx context.Context, accountId uuid.UUID, limit int) ([]domain.Notification, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectNotifications, accountId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var noteId uuid.NullUUID
		if err := rows.Scan(&n.Id, &n.Type, &n.AccountId, &n.NotifiedId, &noteId, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.NoteId = uuidPtr(noteId)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *DB) deleteById(ctx context.Context, query string, id uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

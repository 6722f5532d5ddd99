package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

const (
	noteColumns = `id, author_id, uri, visibility, reply_id, quote_id, reblog_id, sensitive, subject,
		content, content_type, content_source, reply_count, reblog_count, like_count, created_at, updated_at`

	sqlSelectNoteById            = `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	sqlSelectNoteByURI           = `SELECT ` + noteColumns + ` FROM notes WHERE uri = ?`
	sqlSelectReblog              = `SELECT ` + noteColumns + ` FROM notes WHERE author_id = ? AND reblog_id = ?`
	sqlSelectReblogAuthors       = `SELECT author_id FROM notes WHERE reblog_id = ?`
	sqlSelectPublicNotesByAuthor = `SELECT ` + noteColumns + ` FROM notes
		WHERE author_id = ? AND visibility = 'public' AND reblog_id IS NULL
		ORDER BY created_at DESC LIMIT ?`

	sqlUpsertNote = `INSERT INTO notes(id, author_id, uri, visibility, reply_id, quote_id, reblog_id, sensitive, subject,
			content, content_type, content_source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			visibility = excluded.visibility,
			reply_id = excluded.reply_id,
			quote_id = excluded.quote_id,
			sensitive = excluded.sensitive,
			subject = excluded.subject,
			content = excluded.content,
			content_type = excluded.content_type,
			content_source = excluded.content_source,
			updated_at = excluded.updated_at
		WHERE notes.author_id = excluded.author_id
		RETURNING id, author_id`

	sqlDeleteNote = `DELETE FROM notes WHERE id = ?`

	sqlRecountNote = `UPDATE notes SET
			reply_count = (SELECT COUNT(*) FROM notes r WHERE r.reply_id = notes.id),
			reblog_count = (SELECT COUNT(*) FROM notes r WHERE r.reblog_id = notes.id),
			like_count = (SELECT COUNT(*) FROM likes WHERE liked_id = notes.id)
		WHERE id = ?`

	sqlDeleteAttachments = `DELETE FROM attachments WHERE note_id = ?`
	sqlInsertAttachment  = `INSERT INTO attachments(id, note_id, position, url, content_type, description, size, width, height, blurhash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAttachments = `SELECT id, note_id, url, content_type, description, size, width, height, blurhash
		FROM attachments WHERE note_id = ? ORDER BY position`

	sqlDeleteNoteMentions = `DELETE FROM note_mentions WHERE note_id = ?`
	sqlInsertNoteMention  = `INSERT OR IGNORE INTO note_mentions(note_id, actor_id) VALUES (?, ?)`
	sqlSelectNoteMentions = `SELECT actor_id FROM note_mentions WHERE note_id = ?`

	sqlDeleteNoteEmojis = `DELETE FROM note_emojis WHERE note_id = ?`
	sqlInsertNoteEmoji  = `INSERT OR IGNORE INTO note_emojis(note_id, emoji_id) VALUES (?, ?)`
	sqlSelectNoteEmojis = `SELECT emoji_id FROM note_emojis WHERE note_id = ?`
)

// ErrNoteOwner is returned when an upsert targets a URI stored under
// another author.
var ErrNoteOwner = errors.New("note uri belongs to another author")

func scanNote(row scanner) (*domain.Note, error) {
	var n domain.Note
	var replyId, quoteId, reblogId uuid.NullUUID
	var subject, content, contentType, contentSource sql.NullString
	err := row.Scan(&n.Id, &n.AuthorId, &n.URI, &n.Visibility, &replyId, &quoteId, &reblogId, &n.Sensitive, &subject,
		&content, &contentType, &contentSource, &n.ReplyCount, &n.ReblogCount, &n.LikeCount, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	n.ReplyId = uuidPtr(replyId)
	n.QuoteId = uuidPtr(quoteId)
	n.ReblogId = uuidPtr(reblogId)
	n.Subject = subject.String
	n.Content = content.String
	n.ContentType = contentType.String
	n.ContentSource = contentSource.String
	return &n, nil
}

func (db *DB) readNote(ctx context.Context, query string, args ...any) (*domain.Note, error) {
	n, err := scanNote(db.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := db.loadNoteChildren(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (db *DB) loadNoteChildren(ctx context.Context, n *domain.Note) error {
	rows, err := db.db.QueryContext(ctx, sqlSelectAttachments, n.Id)
	if err != nil {
		return err
	}
	defer rows.Close()

	n.Attachments = nil
	for rows.Next() {
		var a domain.Attachment
		var contentType, description, blurhash sql.NullString
		if err := rows.Scan(&a.Id, &a.NoteId, &a.URL, &contentType, &description, &a.Size, &a.Width, &a.Height, &blurhash); err != nil {
			return err
		}
		a.ContentType = contentType.String
		a.Description = description.String
		a.Blurhash = blurhash.String
		n.Attachments = append(n.Attachments, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if n.MentionIds, err = readIds(ctx, db.db, sqlSelectNoteMentions, n.Id); err != nil {
		return err
	}
	n.EmojiIds, err = readIds(ctx, db.db, sqlSelectNoteEmojis, n.Id)
	return err
}

func (db *DB) ReadNoteById(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	return db.readNote(ctx, sqlSelectNoteById, id)
}

func (db *DB) ReadNoteByURI(ctx context.Context, uri string) (*domain.Note, error) {
	return db.readNote(ctx, sqlSelectNoteByURI, uri)
}

// ReadReblog finds the share of rebloggedId made by authorId.
func (db *DB) ReadReblog(ctx context.Context, authorId, rebloggedId uuid.UUID) (*domain.Note, error) {
	return db.readNote(ctx, sqlSelectReblog, authorId, rebloggedId)
}

func (db *DB) ListPublicNotesByAuthor(ctx context.Context, authorId uuid.UUID, limit int) ([]domain.Note, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectPublicNotesByAuthor, authorId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range notes {
		if err := db.loadNoteChildren(ctx, &notes[i]); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

// UpsertNote stores n keyed by URI, replacing its attachments, mentions and
// emojis. The stored id is written back to n.Id.
func (db *DB) UpsertNote(ctx context.Context, n *domain.Note) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	if n.Visibility == "" {
		n.Visibility = domain.VisibilityPublic
	}
	n.CreatedAt = utc(n.CreatedAt)
	n.UpdatedAt = time.Now().UTC()

	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		var id, authorId uuid.UUID
		err := tx.QueryRowContext(ctx, sqlUpsertNote,
			n.Id, n.AuthorId, n.URI, n.Visibility, nullUUID(n.ReplyId), nullUUID(n.QuoteId), nullUUID(n.ReblogId),
			n.Sensitive, nullString(n.Subject), nullString(n.Content), nullString(n.ContentType), nullString(n.ContentSource),
			n.CreatedAt, n.UpdatedAt,
		).Scan(&id, &authorId)
		if errors.Is(err, sql.ErrNoRows) {
			// the conflict update was skipped by its WHERE clause
			return ErrNoteOwner
		}
		if err != nil {
			return err
		}
		n.Id = id

		if _, err := tx.ExecContext(ctx, sqlDeleteAttachments, id); err != nil {
			return err
		}
		for i := range n.Attachments {
			a := &n.Attachments[i]
			if a.Id == uuid.Nil {
				a.Id = uuid.New()
			}
			a.NoteId = id
			if _, err := tx.ExecContext(ctx, sqlInsertAttachment, a.Id, id, i, a.URL, nullString(a.ContentType),
				nullString(a.Description), a.Size, a.Width, a.Height, nullString(a.Blurhash)); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, sqlDeleteNoteMentions, id); err != nil {
			return err
		}
		for _, actorId := range n.MentionIds {
			if _, err := tx.ExecContext(ctx, sqlInsertNoteMention, id, actorId); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, sqlDeleteNoteEmojis, id); err != nil {
			return err
		}
		for _, emojiId := range n.EmojiIds {
			if _, err := tx.ExecContext(ctx, sqlInsertNoteEmoji, id, emojiId); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteNote removes the note, its reblogs, likes and reactions, and
// recomputes the counters of the note it replied to or shared and of its
// author.
func (db *DB) DeleteNote(ctx context.Context, id uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		n, err := scanNote(tx.QueryRowContext(ctx, sqlSelectNoteById, id))
		if err != nil {
			return err
		}
		// reblog authors lose a status along with the cascade
		reblogAuthors, err := readIds(ctx, tx, sqlSelectReblogAuthors, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, sqlDeleteNote, id); err != nil {
			return err
		}

		for _, parent := range []*uuid.UUID{n.ReplyId, n.ReblogId} {
			if parent == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, sqlRecountNote, *parent); err != nil {
				return err
			}
		}
		for _, actor := range append(reblogAuthors, n.AuthorId) {
			if _, err := tx.ExecContext(ctx, sqlRecountActor, actor); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) RecountNote(ctx context.Context, id uuid.UUID) error {
	_, err := db.db.ExecContext(ctx, sqlRecountNote, id)
	return err
}

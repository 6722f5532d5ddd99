package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

const (
	actorColumns = `id, username, display_name, bio, uri, instance_id, public_key, private_key,
		locked, indexable, inbox_uri, outbox_uri, followers_uri, following_uri, avatar_url, header_url,
		follower_count, following_count, status_count, created_at, updated_at`

	sqlSelectActorById            = `SELECT ` + actorColumns + ` FROM actors WHERE id = ?`
	sqlSelectActorByURI           = `SELECT ` + actorColumns + ` FROM actors WHERE uri = ?`
	sqlSelectLocalActorByUsername = `SELECT ` + actorColumns + ` FROM actors WHERE instance_id IS NULL AND username = ?`
	sqlSelectLocalActors          = `SELECT ` + actorColumns + ` FROM actors WHERE instance_id IS NULL ORDER BY username`

	sqlUpsertActor = `INSERT INTO actors(id, username, display_name, bio, uri, instance_id, public_key, private_key,
			locked, indexable, inbox_uri, outbox_uri, followers_uri, following_uri, avatar_url, header_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			bio = excluded.bio,
			public_key = excluded.public_key,
			private_key = COALESCE(excluded.private_key, actors.private_key),
			locked = excluded.locked,
			indexable = excluded.indexable,
			inbox_uri = excluded.inbox_uri,
			outbox_uri = excluded.outbox_uri,
			followers_uri = excluded.followers_uri,
			following_uri = excluded.following_uri,
			avatar_url = excluded.avatar_url,
			header_url = excluded.header_url,
			updated_at = excluded.updated_at
		RETURNING id`

	sqlDeleteActorEmojis = `DELETE FROM actor_emojis WHERE actor_id = ?`
	sqlInsertActorEmoji  = `INSERT OR IGNORE INTO actor_emojis(actor_id, emoji_id) VALUES (?, ?)`
	sqlSelectActorEmojis = `SELECT emoji_id FROM actor_emojis WHERE actor_id = ?`

	// counterparts whose counters change when the actor disappears
	sqlSelectActorCounterparts = `SELECT subject_id FROM relationships WHERE owner_id = ?
		UNION SELECT owner_id FROM relationships WHERE subject_id = ?`
	sqlSelectActorTouchedNotes = `SELECT reply_id FROM notes WHERE author_id = ? AND reply_id IS NOT NULL
		UNION SELECT reblog_id FROM notes WHERE author_id = ? AND reblog_id IS NOT NULL
		UNION SELECT liked_id FROM likes WHERE liker_id = ?`
	sqlDeleteActor = `DELETE FROM actors WHERE id = ?`

	sqlRecountActor = `UPDATE actors SET
			follower_count = (SELECT COUNT(*) FROM relationships WHERE subject_id = actors.id AND following = 1),
			following_count = (SELECT COUNT(*) FROM relationships WHERE owner_id = actors.id AND following = 1),
			status_count = (SELECT COUNT(*) FROM notes WHERE author_id = actors.id AND reblog_id IS NULL)
		WHERE id = ?`

	instanceColumns = `id, host, name, software, protocol, public_key, shared_inbox, created_at, updated_at`

	sqlSelectInstanceById   = `SELECT ` + instanceColumns + ` FROM instances WHERE id = ?`
	sqlSelectInstanceByHost = `SELECT ` + instanceColumns + ` FROM instances WHERE host = ?`
	sqlSelectInstances      = `SELECT ` + instanceColumns + ` FROM instances ORDER BY host`
	sqlUpsertInstance       = `INSERT INTO instances(id, host, name, software, protocol, public_key, shared_inbox, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			name = excluded.name,
			software = excluded.software,
			protocol = excluded.protocol,
			public_key = excluded.public_key,
			shared_inbox = excluded.shared_inbox,
			updated_at = excluded.updated_at
		RETURNING id`

	emojiColumns = `id, shortcode, url, content_type, instance_id`

	sqlSelectEmojiById = `SELECT ` + emojiColumns + ` FROM emojis WHERE id = ?`
	sqlSelectEmoji     = `SELECT ` + emojiColumns + ` FROM emojis WHERE shortcode = ? AND COALESCE(instance_id, '') = COALESCE(?, '')`
	sqlInsertEmoji     = `INSERT INTO emojis(id, shortcode, url, content_type, instance_id) VALUES (?, ?, ?, ?, ?)`
	sqlUpdateEmoji     = `UPDATE emojis SET url = ?, content_type = ? WHERE id = ?`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanActor(row scanner) (*domain.Actor, error) {
	var a domain.Actor
	var instanceId uuid.NullUUID
	var displayName, bio, publicKey, privateKey, inbox, outbox, followers, following, avatar, header sql.NullString
	err := row.Scan(&a.Id, &a.Username, &displayName, &bio, &a.URI, &instanceId, &publicKey, &privateKey,
		&a.Locked, &a.Indexable, &inbox, &outbox, &followers, &following, &avatar, &header,
		&a.FollowerCount, &a.FollowingCount, &a.StatusCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.InstanceId = uuidPtr(instanceId)
	a.DisplayName = displayName.String
	a.Bio = bio.String
	a.PublicKey = publicKey.String
	a.PrivateKey = privateKey.String
	a.InboxURI = inbox.String
	a.OutboxURI = outbox.String
	a.FollowersURI = followers.String
	a.FollowingURI = following.String
	a.AvatarURL = avatar.String
	a.HeaderURL = header.String
	return &a, nil
}

func (db *DB) readActor(ctx context.Context, query string, arg any) (*domain.Actor, error) {
	a, err := scanActor(db.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if a.EmojiIds, err = readIds(ctx, db.db, sqlSelectActorEmojis, a.Id); err != nil {
		return nil, err
	}
	return a, nil
}

func (db *DB) ReadActorById(ctx context.Context, id uuid.UUID) (*domain.Actor, error) {
	return db.readActor(ctx, sqlSelectActorById, id)
}

func (db *DB) ReadActorByURI(ctx context.Context, uri string) (*domain.Actor, error) {
	return db.readActor(ctx, sqlSelectActorByURI, uri)
}

func (db *DB) ReadLocalActorByUsername(ctx context.Context, username string) (*domain.Actor, error) {
	return db.readActor(ctx, sqlSelectLocalActorByUsername, strings.ToLower(username))
}

// ListLocalActors returns every account hosted here.
func (db *DB) ListLocalActors(ctx context.Context) ([]domain.Actor, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectLocalActors)
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

func (db *DB) UpsertActor(ctx context.Context, a *domain.Actor) error {
	if a.Id == uuid.Nil {
		a.Id = uuid.New()
	}
	if a.IsLocal() {
		a.Username = strings.ToLower(a.Username)
	}
	a.CreatedAt = utc(a.CreatedAt)
	a.UpdatedAt = time.Now().UTC()

	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx, sqlUpsertActor,
			a.Id, a.Username, nullString(a.DisplayName), nullString(a.Bio), a.URI, nullUUID(a.InstanceId),
			nullString(a.PublicKey), nullString(a.PrivateKey), a.Locked, a.Indexable,
			nullString(a.InboxURI), nullString(a.OutboxURI), nullString(a.FollowersURI), nullString(a.FollowingURI),
			nullString(a.AvatarURL), nullString(a.HeaderURL), a.CreatedAt, a.UpdatedAt,
		).Scan(&id)
		if err != nil {
			return err
		}
		a.Id = id

		if _, err := tx.ExecContext(ctx, sqlDeleteActorEmojis, id); err != nil {
			return err
		}
		for _, emojiId := range a.EmojiIds {
			if _, err := tx.ExecContext(ctx, sqlInsertActorEmoji, id, emojiId); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteActor removes the actor with everything it owns and recomputes the
// counters of the actors and notes it touched.
func (db *DB) DeleteActor(ctx context.Context, id uuid.UUID) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		actors, err := readIds(ctx, tx, sqlSelectActorCounterparts, id, id)
		if err != nil {
			return err
		}
		notes, err := readIds(ctx, tx, sqlSelectActorTouchedNotes, id, id, id)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, sqlDeleteActor, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		for _, other := range actors {
			if _, err := tx.ExecContext(ctx, sqlRecountActor, other); err != nil {
				return err
			}
		}
		for _, note := range notes {
			if _, err := tx.ExecContext(ctx, sqlRecountNote, note); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) RecountActor(ctx context.Context, id uuid.UUID) error {
	_, err := db.db.ExecContext(ctx, sqlRecountActor, id)
	return err
}

func scanInstance(row scanner) (*domain.Instance, error) {
	var i domain.Instance
	var name, software, publicKey, sharedInbox sql.NullString
	err := row.Scan(&i.Id, &i.Host, &name, &software, &i.Protocol, &publicKey, &sharedInbox, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	i.Name = name.String
	i.Software = software.String
	i.PublicKey = publicKey.String
	i.SharedInbox = sharedInbox.String
	return &i, nil
}

func (db *DB) ReadInstanceById(ctx context.Context, id uuid.UUID) (*domain.Instance, error) {
	return scanInstance(db.db.QueryRowContext(ctx, sqlSelectInstanceById, id))
}

func (db *DB) ReadInstanceByHost(ctx context.Context, host string) (*domain.Instance, error) {
	return scanInstance(db.db.QueryRowContext(ctx, sqlSelectInstanceByHost, strings.ToLower(host)))
}

// ListInstances returns every known remote instance.
func (db *DB) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectInstances)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []domain.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

func (db *DB) UpsertInstance(ctx context.Context, i *domain.Instance) error {
	if i.Id == uuid.Nil {
		i.Id = uuid.New()
	}
	if i.Protocol == "" {
		i.Protocol = domain.ProtocolVersia
	}
	i.Host = strings.ToLower(i.Host)
	i.CreatedAt = utc(i.CreatedAt)
	i.UpdatedAt = time.Now().UTC()

	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, sqlUpsertInstance,
			i.Id, i.Host, nullString(i.Name), nullString(i.Software), i.Protocol,
			nullString(i.PublicKey), nullString(i.SharedInbox), i.CreatedAt, i.UpdatedAt,
		).Scan(&i.Id)
	})
}

func scanEmoji(row scanner) (*domain.Emoji, error) {
	var e domain.Emoji
	var contentType sql.NullString
	var instanceId uuid.NullUUID
	if err := row.Scan(&e.Id, &e.Shortcode, &e.URL, &contentType, &instanceId); err != nil {
		return nil, notFound(err)
	}
	e.ContentType = contentType.String
	e.InstanceId = uuidPtr(instanceId)
	return &e, nil
}

func (db *DB) ReadEmojiById(ctx context.Context, id uuid.UUID) (*domain.Emoji, error) {
	return scanEmoji(db.db.QueryRowContext(ctx, sqlSelectEmojiById, id))
}

// ReadEmoji looks up a shortcode on the given instance, or among local
// emojis when instanceId is nil.
func (db *DB) ReadEmoji(ctx context.Context, shortcode string, instanceId *uuid.UUID) (*domain.Emoji, error) {
	return scanEmoji(db.db.QueryRowContext(ctx, sqlSelectEmoji, shortcode, nullUUID(instanceId)))
}

func (db *DB) UpsertEmoji(ctx context.Context, e *domain.Emoji) error {
	if e.Id == uuid.Nil {
		e.Id = uuid.New()
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := scanEmoji(tx.QueryRowContext(ctx, sqlSelectEmoji, e.Shortcode, nullUUID(e.InstanceId)))
		switch {
		case err == nil:
			e.Id = existing.Id
			_, err = tx.ExecContext(ctx, sqlUpdateEmoji, e.URL, nullString(e.ContentType), e.Id)
			return err
		case errors.Is(err, ErrNotFound):
			_, err = tx.ExecContext(ctx, sqlInsertEmoji, e.Id, e.Shortcode, e.URL, nullString(e.ContentType), nullUUID(e.InstanceId))
			return err
		default:
			return err
		}
	})
}

func readIds(ctx context.Context, q queryer, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

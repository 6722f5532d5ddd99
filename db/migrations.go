package db

import (
	"context"
	"database/sql"
)

const (
	sqlCreateInstancesTable = `CREATE TABLE IF NOT EXISTS instances (
		id TEXT NOT NULL PRIMARY KEY,
		host TEXT UNIQUE NOT NULL,
		name TEXT,
		software TEXT,
		protocol TEXT NOT NULL DEFAULT 'versia',
		public_key TEXT,
		shared_inbox TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		display_name TEXT,
		bio TEXT,
		uri TEXT UNIQUE NOT NULL,
		instance_id TEXT REFERENCES instances(id) ON DELETE CASCADE,
		public_key TEXT,
		private_key TEXT,
		locked INTEGER DEFAULT 0,
		indexable INTEGER DEFAULT 1,
		inbox_uri TEXT,
		outbox_uri TEXT,
		followers_uri TEXT,
		following_uri TEXT,
		avatar_url TEXT,
		header_url TEXT,
		follower_count INTEGER DEFAULT 0,
		following_count INTEGER DEFAULT 0,
		status_count INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActorsIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_actors_local_username ON actors(username) WHERE instance_id IS NULL;
		CREATE INDEX IF NOT EXISTS idx_actors_instance_id ON actors(instance_id);
	`

	sqlCreateEmojisTable = `CREATE TABLE IF NOT EXISTS emojis (
		id TEXT NOT NULL PRIMARY KEY,
		shortcode TEXT NOT NULL,
		url TEXT NOT NULL,
		content_type TEXT,
		instance_id TEXT REFERENCES instances(id) ON DELETE CASCADE
	)`

	sqlCreateEmojisIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_emojis_identity ON emojis(shortcode, COALESCE(instance_id, ''));
	`

	sqlCreateActorEmojisTable = `CREATE TABLE IF NOT EXISTS actor_emojis (
		actor_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		emoji_id TEXT NOT NULL REFERENCES emojis(id) ON DELETE CASCADE,
		PRIMARY KEY (actor_id, emoji_id)
	)`

	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		uri TEXT UNIQUE NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'public',
		reply_id TEXT REFERENCES notes(id) ON DELETE SET NULL,
		quote_id TEXT REFERENCES notes(id) ON DELETE SET NULL,
		reblog_id TEXT REFERENCES notes(id) ON DELETE CASCADE,
		sensitive INTEGER DEFAULT 0,
		subject TEXT,
		content TEXT,
		content_type TEXT,
		content_source TEXT,
		reply_count INTEGER DEFAULT 0,
		reblog_count INTEGER DEFAULT 0,
		like_count INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_notes_author_id ON notes(author_id);
		CREATE INDEX IF NOT EXISTS idx_notes_reply_id ON notes(reply_id);
		CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_reblog ON notes(author_id, reblog_id) WHERE reblog_id IS NOT NULL;
	`

	sqlCreateAttachmentsTable = `CREATE TABLE IF NOT EXISTS attachments (
		id TEXT NOT NULL PRIMARY KEY,
		note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL,
		content_type TEXT,
		description TEXT,
		size INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		blurhash TEXT
	)`

	sqlCreateNoteMentionsTable = `CREATE TABLE IF NOT EXISTS note_mentions (
		note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		actor_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		PRIMARY KEY (note_id, actor_id)
	)`

	sqlCreateNoteEmojisTable = `CREATE TABLE IF NOT EXISTS note_emojis (
		note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		emoji_id TEXT NOT NULL REFERENCES emojis(id) ON DELETE CASCADE,
		PRIMARY KEY (note_id, emoji_id)
	)`

	sqlCreateRelationshipsTable = `CREATE TABLE IF NOT EXISTS relationships (
		id TEXT NOT NULL PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		subject_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		following INTEGER DEFAULT 0,
		requested INTEGER DEFAULT 0,
		showing_reblogs INTEGER DEFAULT 1,
		notifying INTEGER DEFAULT 0,
		blocking INTEGER DEFAULT 0,
		muting INTEGER DEFAULT 0,
		languages TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_id, subject_id)
	)`

	sqlCreateRelationshipsIndices = `
		CREATE INDEX IF NOT EXISTS idx_relationships_subject_id ON relationships(subject_id);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		liker_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		liked_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		uri TEXT UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(liker_id, liked_id)
	)`

	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_liked_id ON likes(liked_id);
	`

	sqlCreateReactionsTable = `CREATE TABLE IF NOT EXISTS reactions (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		emoji_id TEXT REFERENCES emojis(id) ON DELETE CASCADE,
		emoji_text TEXT,
		uri TEXT UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK ((emoji_id IS NULL) <> (emoji_text IS NULL))
	)`

	sqlCreateReactionsIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reactions_identity ON reactions(author_id, note_id, COALESCE(emoji_id, ''), COALESCE(emoji_text, ''));
		CREATE INDEX IF NOT EXISTS idx_reactions_note_id ON reactions(note_id);
	`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		notified_id TEXT NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
		note_id TEXT REFERENCES notes(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateNotificationsIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_identity ON notifications(type, account_id, notified_id, COALESCE(note_id, ''));
	`

	sqlCreateDeliveryJobsTable = `CREATE TABLE IF NOT EXISTS delivery_jobs (
		id TEXT NOT NULL PRIMARY KEY,
		entity TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at INTEGER NOT NULL,
		claimed_at INTEGER,
		last_error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateDeliveryJobsIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_jobs_due ON delivery_jobs(status, next_attempt_at);
	`
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"instances", sqlCreateInstancesTable},
	{"actors", sqlCreateActorsTable},
	{"actors indices", sqlCreateActorsIndices},
	{"emojis", sqlCreateEmojisTable},
	{"emojis indices", sqlCreateEmojisIndices},
	{"actor_emojis", sqlCreateActorEmojisTable},
	{"notes", sqlCreateNotesTable},
	{"notes indices", sqlCreateNotesIndices},
	{"attachments", sqlCreateAttachmentsTable},
	{"note_mentions", sqlCreateNoteMentionsTable},
	{"note_emojis", sqlCreateNoteEmojisTable},
	{"relationships", sqlCreateRelationshipsTable},
	{"relationships indices", sqlCreateRelationshipsIndices},
	{"likes", sqlCreateLikesTable},
	{"likes indices", sqlCreateLikesIndices},
	{"reactions", sqlCreateReactionsTable},
	{"reactions indices", sqlCreateReactionsIndices},
	{"notifications", sqlCreateNotificationsTable},
	{"notifications indices", sqlCreateNotificationsIndices},
	{"delivery_jobs", sqlCreateDeliveryJobsTable},
	{"delivery_jobs indices", sqlCreateDeliveryJobsIndices},
}

// RunMigrations creates every table and index that does not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		for _, m := range migrations {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				db.log.Error("Migration failed", "step", m.name, "err", err)
				return err
			}
			db.log.Debug("Migration applied", "step", m.name)
		}
		return nil
	})
}

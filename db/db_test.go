package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

// setupTestDB opens a fresh database file for the test
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createLocalActor(t *testing.T, db *DB, username string) *domain.Actor {
	t.Helper()
	a := &domain.Actor{
		Username:  username,
		URI:       "https://local.example/users/" + username,
		PublicKey: "pub",
		InboxURI:  "https://local.example/users/" + username + "/inbox",
	}
	if err := db.UpsertActor(context.Background(), a); err != nil {
		t.Fatalf("UpsertActor(%s) failed: %v", username, err)
	}
	return a
}

func createRemoteActor(t *testing.T, db *DB, host, username string) *domain.Actor {
	t.Helper()
	ctx := context.Background()
	instance := &domain.Instance{Host: host, SharedInbox: "https://" + host + "/inbox"}
	if err := db.UpsertInstance(ctx, instance); err != nil {
		t.Fatalf("UpsertInstance(%s) failed: %v", host, err)
	}
	a := &domain.Actor{
		Username:   username,
		URI:        "https://" + host + "/users/" + username,
		InstanceId: &instance.Id,
		PublicKey:  "pub",
		InboxURI:   "https://" + host + "/users/" + username + "/inbox",
	}
	if err := db.UpsertActor(ctx, a); err != nil {
		t.Fatalf("UpsertActor(%s) failed: %v", username, err)
	}
	return a
}

func createNote(t *testing.T, db *DB, author *domain.Actor, uri string) *domain.Note {
	t.Helper()
	n := &domain.Note{AuthorId: author.Id, URI: uri, Content: "<p>hello</p>", Visibility: domain.VisibilityPublic}
	if err := db.UpsertNote(context.Background(), n); err != nil {
		t.Fatalf("UpsertNote(%s) failed: %v", uri, err)
	}
	return n
}

func follow(t *testing.T, db *DB, owner, subject *domain.Actor) {
	t.Helper()
	ctx := context.Background()
	r := &domain.Relationship{OwnerId: owner.Id, SubjectId: subject.Id, Following: true, ShowingReblogs: true}
	if err := db.UpsertRelationship(ctx, r); err != nil {
		t.Fatalf("UpsertRelationship failed: %v", err)
	}
	for _, id := range []uuid.UUID{owner.Id, subject.Id} {
		if err := db.RecountActor(ctx, id); err != nil {
			t.Fatalf("RecountActor failed: %v", err)
		}
	}
}

func TestUpsertActorKeepsId(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := createRemoteActor(t, db, "remote.example", "alice")

	again := &domain.Actor{
		Username:    "alice",
		DisplayName: "Alice",
		URI:         first.URI,
		InstanceId:  first.InstanceId,
		PublicKey:   "rotated",
	}
	if err := db.UpsertActor(ctx, again); err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}
	if again.Id != first.Id {
		t.Errorf("Expected id %s to be kept, got %s", first.Id, again.Id)
	}

	stored, err := db.ReadActorByURI(ctx, first.URI)
	if err != nil {
		t.Fatalf("ReadActorByURI failed: %v", err)
	}
	if stored.DisplayName != "Alice" || stored.PublicKey != "rotated" {
		t.Errorf("Expected updated profile, got %q / %q", stored.DisplayName, stored.PublicKey)
	}
	if !stored.IsRemote() {
		t.Error("Expected actor to stay remote")
	}
}

func TestReadLocalActorByUsername(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	local := createLocalActor(t, db, "Bob")
	createRemoteActor(t, db, "remote.example", "carol")

	got, err := db.ReadLocalActorByUsername(ctx, "BOB")
	if err != nil {
		t.Fatalf("ReadLocalActorByUsername failed: %v", err)
	}
	if got.Id != local.Id {
		t.Errorf("Expected %s, got %s", local.Id, got.Id)
	}

	if _, err := db.ReadLocalActorByUsername(ctx, "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a remote username, got %v", err)
	}
}

func TestReadActorNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ReadActorById(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpsertActorEmojis(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	emoji := &domain.Emoji{Shortcode: "blobcat", URL: "https://local.example/blobcat.png", ContentType: "image/png"}
	if err := db.UpsertEmoji(ctx, emoji); err != nil {
		t.Fatalf("UpsertEmoji failed: %v", err)
	}

	a := createLocalActor(t, db, "dave")
	a.EmojiIds = []uuid.UUID{emoji.Id}
	if err := db.UpsertActor(ctx, a); err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}

	got, err := db.ReadActorById(ctx, a.Id)
	if err != nil {
		t.Fatalf("ReadActorById failed: %v", err)
	}
	if len(got.EmojiIds) != 1 || got.EmojiIds[0] != emoji.Id {
		t.Errorf("Expected emoji %s, got %v", emoji.Id, got.EmojiIds)
	}
}

func TestUpsertEmojiIdentity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	remote := createRemoteActor(t, db, "remote.example", "erin")

	local := &domain.Emoji{Shortcode: "wave", URL: "https://local.example/wave.png"}
	if err := db.UpsertEmoji(ctx, local); err != nil {
		t.Fatalf("UpsertEmoji failed: %v", err)
	}
	updated := &domain.Emoji{Shortcode: "wave", URL: "https://local.example/wave2.png"}
	if err := db.UpsertEmoji(ctx, updated); err != nil {
		t.Fatalf("UpsertEmoji failed: %v", err)
	}
	if updated.Id != local.Id {
		t.Errorf("Expected same local emoji, got %s and %s", local.Id, updated.Id)
	}

	foreign := &domain.Emoji{Shortcode: "wave", URL: "https://remote.example/wave.png", InstanceId: remote.InstanceId}
	if err := db.UpsertEmoji(ctx, foreign); err != nil {
		t.Fatalf("UpsertEmoji failed: %v", err)
	}
	if foreign.Id == local.Id {
		t.Error("Expected a remote emoji to be stored separately")
	}

	got, err := db.ReadEmoji(ctx, "wave", nil)
	if err != nil {
		t.Fatalf("ReadEmoji failed: %v", err)
	}
	if got.URL != "https://local.example/wave2.png" {
		t.Errorf("Expected updated url, got %s", got.URL)
	}
	got, err = db.ReadEmoji(ctx, "wave", remote.InstanceId)
	if err != nil {
		t.Fatalf("ReadEmoji failed: %v", err)
	}
	if got.Id != foreign.Id {
		t.Errorf("Expected remote emoji %s, got %s", foreign.Id, got.Id)
	}
}

func TestUpsertNoteReplacesChildren(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := createRemoteActor(t, db, "remote.example", "frank")
	mentioned := createLocalActor(t, db, "gina")

	n := &domain.Note{
		AuthorId:    author.Id,
		URI:         "https://remote.example/notes/1",
		Content:     "<p>hi @gina</p>",
		Attachments: []domain.Attachment{{URL: "https://remote.example/a.png", ContentType: "image/png"}, {URL: "https://remote.example/b.png"}},
		MentionIds:  []uuid.UUID{mentioned.Id},
	}
	if err := db.UpsertNote(ctx, n); err != nil {
		t.Fatalf("UpsertNote failed: %v", err)
	}
	firstId := n.Id

	edit := &domain.Note{
		AuthorId:    author.Id,
		URI:         n.URI,
		Content:     "<p>edited</p>",
		Attachments: []domain.Attachment{{URL: "https://remote.example/c.png"}},
	}
	if err := db.UpsertNote(ctx, edit); err != nil {
		t.Fatalf("UpsertNote failed: %v", err)
	}
	if edit.Id != firstId {
		t.Errorf("Expected id %s to be kept, got %s", firstId, edit.Id)
	}

	got, err := db.ReadNoteByURI(ctx, n.URI)
	if err != nil {
		t.Fatalf("ReadNoteByURI failed: %v", err)
	}
	if got.Content != "<p>edited</p>" {
		t.Errorf("Expected edited content, got %q", got.Content)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].URL != "https://remote.example/c.png" {
		t.Errorf("Expected attachments to be replaced, got %+v", got.Attachments)
	}
	if len(got.MentionIds) != 0 {
		t.Errorf("Expected mentions to be cleared, got %v", got.MentionIds)
	}
	if got.Visibility != domain.VisibilityPublic {
		t.Errorf("Expected default visibility public, got %s", got.Visibility)
	}
}

func TestUpsertNoteOtherAuthor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	owner := createRemoteActor(t, db, "remote.example", "hank")
	other := createRemoteActor(t, db, "other.example", "ivy")
	n := createNote(t, db, owner, "https://remote.example/notes/2")

	hijack := &domain.Note{AuthorId: other.Id, URI: n.URI, Content: "<p>mine now</p>"}
	if err := db.UpsertNote(ctx, hijack); !errors.Is(err, ErrNoteOwner) {
		t.Errorf("Expected ErrNoteOwner, got %v", err)
	}
}

func TestCreateLikeOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := createLocalActor(t, db, "jack")
	liker := createRemoteActor(t, db, "remote.example", "kate")
	note := createNote(t, db, author, "https://local.example/notes/1")

	for i, want := range []bool{true, false} {
		like := &domain.Like{LikerId: liker.Id, LikedId: note.Id, URI: "https://remote.example/likes/1"}
		created, err := db.CreateLike(ctx, like)
		if err != nil {
			t.Fatalf("CreateLike #%d failed: %v", i, err)
		}
		if created != want {
			t.Errorf("CreateLike #%d: expected created=%t, got %t", i, want, created)
		}
	}

	if err := db.RecountNote(ctx, note.Id); err != nil {
		t.Fatalf("RecountNote failed: %v", err)
	}
	got, err := db.ReadNoteById(ctx, note.Id)
	if err != nil {
		t.Fatalf("ReadNoteById failed: %v", err)
	}
	if got.LikeCount != 1 {
		t.Errorf("Expected like count 1, got %d", got.LikeCount)
	}

	like, err := db.ReadLikeByURI(ctx, "https://remote.example/likes/1")
	if err != nil {
		t.Fatalf("ReadLikeByURI failed: %v", err)
	}
	if err := db.DeleteLike(ctx, like.Id); err != nil {
		t.Fatalf("DeleteLike failed: %v", err)
	}
	if err := db.DeleteLike(ctx, like.Id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCreateReactionIdentity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := createLocalActor(t, db, "liam")
	reactor := createRemoteActor(t, db, "remote.example", "mia")
	note := createNote(t, db, author, "https://local.example/notes/2")

	emoji := &domain.Emoji{Shortcode: "party", URL: "https://local.example/party.png"}
	if err := db.UpsertEmoji(ctx, emoji); err != nil {
		t.Fatalf("UpsertEmoji failed: %v", err)
	}

	tests := []struct {
		name     string
		reaction domain.Reaction
		created  bool
		wantErr  bool
	}{
		{"unicode", domain.Reaction{EmojiText: "👍"}, true, false},
		{"unicode again", domain.Reaction{EmojiText: "👍"}, false, false},
		{"other unicode", domain.Reaction{EmojiText: "🎉"}, true, false},
		{"custom", domain.Reaction{EmojiId: &emoji.Id}, true, false},
		{"custom again", domain.Reaction{EmojiId: &emoji.Id}, false, false},
		{"neither", domain.Reaction{}, false, true},
		{"both", domain.Reaction{EmojiId: &emoji.Id, EmojiText: "👍"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.reaction
			r.AuthorId = reactor.Id
			r.NoteId = note.Id
			created, err := db.CreateReaction(ctx, &r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateReaction() error = %v, wantErr %t", err, tt.wantErr)
			}
			if created != tt.created {
				t.Errorf("CreateReaction() created = %t, want %t", created, tt.created)
			}
		})
	}

	got, err := db.ReadReaction(ctx, reactor.Id, note.Id, &emoji.Id, "")
	if err != nil {
		t.Fatalf("ReadReaction failed: %v", err)
	}
	if got.EmojiId == nil || *got.EmojiId != emoji.Id {
		t.Errorf("Expected custom emoji reaction, got %+v", got)
	}
	if _, err := db.ReadReaction(ctx, reactor.Id, note.Id, nil, "🙃"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreateNotificationIgnoresDuplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	recipient := createLocalActor(t, db, "nina")
	from := createRemoteActor(t, db, "remote.example", "oscar")
	note := createNote(t, db, recipient, "https://local.example/notes/3")

	for range 3 {
		n := &domain.Notification{Type: domain.NotifyFavourite, AccountId: recipient.Id, NotifiedId: from.Id, NoteId: &note.Id}
		if err := db.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification failed: %v", err)
		}
	}
	n := &domain.Notification{Type: domain.NotifyFollow, AccountId: recipient.Id, NotifiedId: from.Id}
	if err := db.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	got, err := db.ListNotifications(ctx, recipient.Id, 10)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(got))
	}
}

func TestRelationshipCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	local := createLocalActor(t, db, "paul")
	remote1 := createRemoteActor(t, db, "remote.example", "quinn")
	remote2 := createRemoteActor(t, db, "other.example", "rita")
	other := createLocalActor(t, db, "sam")

	follow(t, db, remote1, local)
	follow(t, db, remote2, local)
	follow(t, db, other, local)
	follow(t, db, local, remote1)

	got, err := db.ReadActorById(ctx, local.Id)
	if err != nil {
		t.Fatalf("ReadActorById failed: %v", err)
	}
	if got.FollowerCount != 3 || got.FollowingCount != 1 {
		t.Errorf("Expected 3 followers and 1 following, got %d and %d", got.FollowerCount, got.FollowingCount)
	}

	followers, err := db.ListRemoteFollowers(ctx, local.Id)
	if err != nil {
		t.Fatalf("ListRemoteFollowers failed: %v", err)
	}
	if len(followers) != 2 {
		t.Errorf("Expected 2 remote followers, got %d", len(followers))
	}

	r, err := db.ReadRelationship(ctx, local.Id, remote1.Id)
	if err != nil {
		t.Fatalf("ReadRelationship failed: %v", err)
	}
	if r.FollowState() != domain.FollowFollowing {
		t.Errorf("Expected following, got %s", r.FollowState())
	}
}

func TestListFollowRequests(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	local := createLocalActor(t, db, "tina")
	remote := createRemoteActor(t, db, "remote.example", "uma")

	r := &domain.Relationship{OwnerId: remote.Id, SubjectId: local.Id, Requested: true, Languages: []string{"en", "de"}}
	if err := db.UpsertRelationship(ctx, r); err != nil {
		t.Fatalf("UpsertRelationship failed: %v", err)
	}

	requests, err := db.ListFollowRequests(ctx, local.Id)
	if err != nil {
		t.Fatalf("ListFollowRequests failed: %v", err)
	}
	if len(requests) != 1 || requests[0].Id != remote.Id {
		t.Errorf("Expected one request from %s, got %+v", remote.Id, requests)
	}

	got, err := db.ReadRelationship(ctx, remote.Id, local.Id)
	if err != nil {
		t.Fatalf("ReadRelationship failed: %v", err)
	}
	if len(got.Languages) != 2 || got.Languages[1] != "de" {
		t.Errorf("Expected languages to round trip, got %v", got.Languages)
	}
}

func TestDeleteActorRecounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	local := createLocalActor(t, db, "victor")
	remote := createRemoteActor(t, db, "remote.example", "wendy")
	note := createNote(t, db, local, "https://local.example/notes/4")

	follow(t, db, remote, local)
	if _, err := db.CreateLike(ctx, &domain.Like{LikerId: remote.Id, LikedId: note.Id}); err != nil {
		t.Fatalf("CreateLike failed: %v", err)
	}
	reply := &domain.Note{AuthorId: remote.Id, URI: "https://remote.example/notes/r", ReplyId: &note.Id}
	if err := db.UpsertNote(ctx, reply); err != nil {
		t.Fatalf("UpsertNote failed: %v", err)
	}
	if err := db.RecountNote(ctx, note.Id); err != nil {
		t.Fatalf("RecountNote failed: %v", err)
	}

	if err := db.DeleteActor(ctx, remote.Id); err != nil {
		t.Fatalf("DeleteActor failed: %v", err)
	}

	gotActor, err := db.ReadActorById(ctx, local.Id)
	if err != nil {
		t.Fatalf("ReadActorById failed: %v", err)
	}
	if gotActor.FollowerCount != 0 {
		t.Errorf("Expected follower count 0, got %d", gotActor.FollowerCount)
	}
	gotNote, err := db.ReadNoteById(ctx, note.Id)
	if err != nil {
		t.Fatalf("ReadNoteById failed: %v", err)
	}
	if gotNote.LikeCount != 0 || gotNote.ReplyCount != 0 {
		t.Errorf("Expected counters reset, got likes=%d replies=%d", gotNote.LikeCount, gotNote.ReplyCount)
	}
	if _, err := db.ReadNoteByURI(ctx, reply.URI); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected reply to be gone, got %v", err)
	}
	if err := db.DeleteActor(ctx, remote.Id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteNoteRemovesReblogs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := createLocalActor(t, db, "xena")
	sharer := createRemoteActor(t, db, "remote.example", "yuri")
	note := createNote(t, db, author, "https://local.example/notes/5")

	reblog := &domain.Note{AuthorId: sharer.Id, URI: "https://remote.example/shares/1", ReblogId: &note.Id}
	if err := db.UpsertNote(ctx, reblog); err != nil {
		t.Fatalf("UpsertNote failed: %v", err)
	}
	got, err := db.ReadReblog(ctx, sharer.Id, note.Id)
	if err != nil {
		t.Fatalf("ReadReblog failed: %v", err)
	}
	if !got.IsReblog() {
		t.Error("Expected a reblog")
	}

	if err := db.DeleteNote(ctx, note.Id); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if _, err := db.ReadReblog(ctx, sharer.Id, note.Id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected reblog to be removed, got %v", err)
	}
	if err := db.DeleteNote(ctx, note.Id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListPublicNotesByAuthor(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := createLocalActor(t, db, "zoe")
	createNote(t, db, author, "https://local.example/notes/6")
	createNote(t, db, author, "https://local.example/notes/7")
	private := &domain.Note{AuthorId: author.Id, URI: "https://local.example/notes/8", Visibility: domain.VisibilityPrivate}
	if err := db.UpsertNote(ctx, private); err != nil {
		t.Fatalf("UpsertNote failed: %v", err)
	}

	notes, err := db.ListPublicNotesByAuthor(ctx, author.Id, 10)
	if err != nil {
		t.Fatalf("ListPublicNotesByAuthor failed: %v", err)
	}
	if len(notes) != 2 {
		t.Errorf("Expected 2 public notes, got %d", len(notes))
	}

	notes, err = db.ListPublicNotesByAuthor(ctx, author.Id, 1)
	if err != nil {
		t.Fatalf("ListPublicNotesByAuthor failed: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(notes))
	}
}

func TestDeliveryQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := &domain.DeliveryJob{
		Entity:      `{"type":"Note"}`,
		EntityType:  "Note",
		SenderId:    uuid.New(),
		RecipientId: uuid.New(),
	}
	if err := db.EnqueueDeliveryJob(ctx, job); err != nil {
		t.Fatalf("EnqueueDeliveryJob failed: %v", err)
	}

	claimed, err := db.ClaimDeliveryJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ClaimDeliveryJobs failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Id != job.Id {
		t.Fatalf("Expected to claim %s, got %+v", job.Id, claimed)
	}
	if claimed[0].Status != domain.DeliveryInProgress {
		t.Errorf("Expected in_progress, got %s", claimed[0].Status)
	}

	// a claimed job is not handed out twice
	again, err := db.ClaimDeliveryJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ClaimDeliveryJobs failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected nothing to claim, got %d", len(again))
	}

	if err := db.FailDeliveryJob(ctx, job.Id, "connection refused", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("FailDeliveryJob failed: %v", err)
	}
	again, _ = db.ClaimDeliveryJobs(ctx, 10)
	if len(again) != 0 {
		t.Errorf("Expected job not to be due yet, got %d", len(again))
	}

	pending, err := db.ListDeliveryJobs(ctx, domain.DeliveryPending, 10)
	if err != nil {
		t.Fatalf("ListDeliveryJobs failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 1 || pending[0].LastError != "connection refused" {
		t.Errorf("Expected one pending job after one attempt, got %+v", pending)
	}

	if err := db.RetryDeliveryJob(ctx, job.Id); err != nil {
		t.Fatalf("RetryDeliveryJob failed: %v", err)
	}
	claimed, _ = db.ClaimDeliveryJobs(ctx, 10)
	if len(claimed) != 1 {
		t.Fatalf("Expected retried job to be due, got %d", len(claimed))
	}

	if err := db.FailDeliveryJob(ctx, job.Id, "gone", time.Time{}); err != nil {
		t.Fatalf("FailDeliveryJob failed: %v", err)
	}
	failed, _ := db.ListDeliveryJobs(ctx, domain.DeliveryFailed, 10)
	if len(failed) != 1 || failed[0].Attempts != 2 {
		t.Errorf("Expected one failed job after two attempts, got %+v", failed)
	}

	if err := db.RetryDeliveryJob(ctx, job.Id); err != nil {
		t.Fatalf("RetryDeliveryJob failed: %v", err)
	}
	claimed, _ = db.ClaimDeliveryJobs(ctx, 10)
	if len(claimed) != 1 || claimed[0].Attempts != 0 {
		t.Fatalf("Expected failed job to restart with no attempts, got %+v", claimed)
	}
	if err := db.CompleteDeliveryJob(ctx, job.Id); err != nil {
		t.Fatalf("CompleteDeliveryJob failed: %v", err)
	}
	open, _ := db.ListDeliveryJobs(ctx, "", 10)
	if len(open) != 0 {
		t.Errorf("Expected no unfinished jobs, got %d", len(open))
	}

	if err := db.DropDeliveryJob(ctx, job.Id); err != nil {
		t.Fatalf("DropDeliveryJob failed: %v", err)
	}
	if err := db.CompleteDeliveryJob(ctx, job.Id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a dropped job, got %v", err)
	}
}

func TestClaimDeliveryJobsLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for range 5 {
		job := &domain.DeliveryJob{Entity: "{}", EntityType: "Like", SenderId: uuid.New(), RecipientId: uuid.New()}
		if err := db.EnqueueDeliveryJob(ctx, job); err != nil {
			t.Fatalf("EnqueueDeliveryJob failed: %v", err)
		}
	}

	claimed, err := db.ClaimDeliveryJobs(ctx, 3)
	if err != nil {
		t.Fatalf("ClaimDeliveryJobs failed: %v", err)
	}
	if len(claimed) != 3 {
		t.Errorf("Expected 3 claimed jobs, got %d", len(claimed))
	}
	rest, _ := db.ClaimDeliveryJobs(ctx, 10)
	if len(rest) != 2 {
		t.Errorf("Expected the remaining 2 jobs, got %d", len(rest))
	}
}

func TestResetStaleDeliveryJobs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	job := &domain.DeliveryJob{Entity: "{}", EntityType: "Follow", SenderId: uuid.New(), RecipientId: uuid.New()}
	if err := db.EnqueueDeliveryJob(ctx, job); err != nil {
		t.Fatalf("EnqueueDeliveryJob failed: %v", err)
	}
	if _, err := db.ClaimDeliveryJobs(ctx, 10); err != nil {
		t.Fatalf("ClaimDeliveryJobs failed: %v", err)
	}

	n, err := db.ResetStaleDeliveryJobs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ResetStaleDeliveryJobs failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected a fresh claim to survive, reset %d", n)
	}

	// a negative age puts the cutoff in the future
	n, err = db.ResetStaleDeliveryJobs(ctx, -time.Minute)
	if err != nil {
		t.Fatalf("ResetStaleDeliveryJobs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 reset job, got %d", n)
	}
	claimed, _ := db.ClaimDeliveryJobs(ctx, 10)
	if len(claimed) != 1 {
		t.Errorf("Expected the reset job to be claimable, got %d", len(claimed))
	}
}

package federation

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/util"
)

// InboxRequest is the part of an inbound HTTP request the inbox needs.
type InboxRequest struct {
	Method   string
	Path     string // path with query, as signed
	Header   http.Header
	Body     []byte
	SourceIP string
}

// Sender is the authenticated origin of an inbound entity. Exactly one of
// Actor, Instance or Bridge is set.
type Sender struct {
	Actor    *domain.Actor
	Instance *domain.Instance
	Bridge   bool
}

// InboxProcessor authenticates, filters, decodes and applies inbound
// entities.
type InboxProcessor struct {
	store        Store
	resolver     *Resolver
	outbox       *Outbox
	defederation *Defederation
	bridge       *Bridge
	filters      *Filters
	uris         URIs
	handlers     map[entity.Type]handlerFunc
	log          *log.Logger
}

// NewInboxProcessor wires an inbox. bridge is nil when the bridge is
// disabled.
func NewInboxProcessor(store Store, resolver *Resolver, outbox *Outbox, defederation *Defederation, bridge *Bridge, filters *Filters, uris URIs) *InboxProcessor {
	p := &InboxProcessor{
		store:        store,
		resolver:     resolver,
		outbox:       outbox,
		defederation: defederation,
		bridge:       bridge,
		filters:      filters,
		uris:         uris,
		log:          util.NewLogger("Inbox"),
	}
	p.handlers = p.registry()
	return p
}

// Process runs one inbound request through the pipeline. A nil error means
// the request is accepted, which includes silent drops.
func (p *InboxProcessor) Process(ctx context.Context, req InboxRequest) error {
	authorization := req.Header.Get("Authorization")

	if p.bridge != nil && authorization != "" {
		if err := p.bridge.Authenticate(authorization, req.SourceIP); err != nil {
			p.log.Warn("Bridge authentication failed", "ip", req.SourceIP, "err", err)
			return err
		}

		e, err := p.decode(req.Body)
		if err != nil {
			return err
		}
		if a, ok := e.(entity.Authored); ok && a.AuthorURI() != "" {
			if p.uris.IsLocal(a.AuthorURI()) {
				return domain.ErrUnauthorized("Bridged entity claims a local author", a.AuthorURI())
			}
			if p.defederation.BlockedURI(a.AuthorURI()) {
				p.log.Debug("Dropping bridged entity from defederated host", "author", a.AuthorURI())
				return nil
			}
		}
		return p.dispatch(ctx, &Sender{Bridge: true}, e)
	}

	if !HasSignature(req.Header) {
		return domain.ErrUnauthorized("Missing signature", "")
	}
	signer, err := ParseSignedBy(req.Header.Get(HeaderSignedBy))
	if err != nil {
		return domain.ErrUnauthorized("Invalid signer", err.Error())
	}

	if p.defederation.Blocked(signer.Host) {
		p.log.Debug("Dropping request from defederated host", "host", signer.Host)
		return nil
	}

	e, err := p.decode(req.Body)
	if err != nil {
		return err
	}

	sender, key, err := p.resolveSigner(ctx, signer)
	if err != nil {
		return err
	}

	ok, err := Verify(req.Method, req.Path, req.Header, req.Body, key)
	if err != nil || !ok {
		p.log.Warn("Signature is not valid", "signer", req.Header.Get(HeaderSignedBy), "err", err)
		return domain.ErrUnauthorized("Signature is not valid", "")
	}

	if err := p.checkAuthor(signer, e); err != nil {
		return err
	}

	return p.dispatch(ctx, sender, e)
}

func (p *InboxProcessor) decode(body []byte) (entity.Entity, error) {
	e, err := entity.Decode(body)
	if errors.Is(err, entity.ErrUnknownType) {
		return nil, domain.ErrBadRequest("Unknown entity type", err.Error())
	}
	if err != nil {
		return nil, domain.ErrBadRequest("Invalid entity", err.Error())
	}
	return e, nil
}

func (p *InboxProcessor) resolveSigner(ctx context.Context, signer Signer) (*Sender, ed25519.PublicKey, error) {
	var encoded string
	sender := &Sender{}

	if signer.IsInstance() {
		instance, err := p.resolver.ResolveInstance(ctx, signer.Host)
		if err != nil {
			return nil, nil, err
		}
		sender.Instance = instance
		encoded = instance.PublicKey
	} else {
		actor, err := p.resolver.ResolveUser(ctx, signer.ActorURI)
		if err != nil {
			return nil, nil, err
		}
		sender.Actor = actor
		encoded = actor.PublicKey
	}

	key, err := ParsePublicKey(encoded)
	if err != nil {
		return nil, nil, domain.ErrUnauthorized("Signature is not valid", "signer has no usable public key")
	}
	return sender, key, nil
}

// checkAuthor ties the signature to the entity: an actor may only sign its
// own entities, an instance only those authored on it.
func (p *InboxProcessor) checkAuthor(signer Signer, e entity.Entity) error {
	a, ok := e.(entity.Authored)
	if !ok || a.AuthorURI() == "" {
		return nil
	}
	if signer.IsInstance() {
		if hostOf(a.AuthorURI()) != signer.Host {
			return domain.ErrUnauthorized("Signer does not match entity author", a.AuthorURI())
		}
		return nil
	}
	if a.AuthorURI() != signer.ActorURI {
		return domain.ErrUnauthorized("Signer does not match entity author", a.AuthorURI())
	}
	return nil
}

package ninep

import (
	"context"
	"fmt"
)

// AuthenticatingHandler adapts a FileSystem to Handle9P the same way
// UnauthenticatedHandler does, except Tattach is only honored once a Tauth
// round trip has produced an AuthFileHandle that signs off on the attach.
// Tauth asks Authorizer.Auth for an afid-bound AuthFileHandle; Tattach
// consults that handle's Authorized method before binding the root fid.
// Reads and writes against the afid itself (the out-of-band proof
// exchange some auth protocols need) fall through to the embedded
// handler's Tread/Twrite cases exactly like any other open fid, since the
// afid is tracked in the same FidTracker.
type AuthenticatingHandler struct {
	*UnauthenticatedHandler

	Authorizer Authorizer
}

func NewAuthenticatingHandler(fs FileSystem, authorizer Authorizer, qids *QidPool, fids *FidTracker, errorLog, traceLog Logger) *AuthenticatingHandler {
	return &AuthenticatingHandler{
		UnauthenticatedHandler: &UnauthenticatedHandler{
			Fs:       fs,
			ErrorLog: errorLog,
			TraceLog: traceLog,
			Qids:     qids,
			Fids:     fids,
		},
		Authorizer: authorizer,
	}
}

func (h *AuthenticatingHandler) Handle9P(ctx context.Context, m Message, w Replier) {
	switch m := m.(type) {
	case Tauth:
		h.handleTauth(ctx, m, w)
		return
	case Tattach:
		h.handleTattach(ctx, m, w)
		return
	}
	h.UnauthenticatedHandler.Handle9P(ctx, m, w)
}

func (h *AuthenticatingHandler) handleTauth(ctx context.Context, m Tauth, w Replier) {
	if h.Authorizer == nil {
		h.errorf("auth: Tauth: no Authorizer configured")
		w.Rerror("authentication not supported")
		return
	}

	afh, err := h.Authorizer.Auth(ctx, RemoteAddr(ctx), m.Uname(), m.Aname())
	if err != nil {
		h.errorf("auth: Tauth: %v/%v rejected: %s", m.Uname(), m.Aname(), err)
		w.Rerror("auth failed: %s", err)
		return
	}
	if afh == nil {
		h.tracef("auth: Tauth: %v/%v requires no authentication", m.Uname(), m.Aname())
		w.Rerror("authentication not required")
		return
	}

	name := fmt.Sprintf("#auth/%d", m.Afid())
	h.Fids.Put(m.Afid(), file{name: name, user: m.Uname(), flags: ORDWR, h: afh})
	q := h.Qids.Put(name, QT_AUTH)
	h.tracef("auth: Tauth: %v/%v -> afid %v", m.Uname(), m.Aname(), m.Afid())
	w.Rauth(q)
}

func (h *AuthenticatingHandler) handleTattach(ctx context.Context, m Tattach, w Replier) {
	if m.Afid() == NO_FID {
		if h.Authorizer != nil {
			afh, err := h.Authorizer.Auth(ctx, RemoteAddr(ctx), m.Uname(), m.Aname())
			if err != nil {
				h.errorf("auth: Tattach: %v/%v rejected: %s", m.Uname(), m.Aname(), err)
				w.Rerror("auth failed: %s", err)
				return
			}
			if afh != nil {
				h.tracef("auth: Tattach: %v/%v rejected: no Tauth performed", m.Uname(), m.Aname())
				w.Rerror("authentication required")
				return
			}
		}
	} else {
		afil, ok := h.Fids.Get(m.Afid())
		if !ok {
			h.errorf("auth: Tattach: unknown afid %v", m.Afid())
			w.Rerror("unknown afid %d", m.Afid())
			return
		}
		afh, ok := afil.h.(AuthFileHandle)
		if !ok {
			h.errorf("auth: Tattach: afid %v is not an auth file", m.Afid())
			w.Rerror("afid %d is not an auth file", m.Afid())
			return
		}
		if !afh.Authorized(m.Uname(), m.Aname()) {
			h.tracef("auth: Tattach: %v/%v not authorized", m.Uname(), m.Aname())
			w.Rerror("not authorized")
			return
		}
	}

	h.tracef("auth: Tattach: %v", m.Fid())
	h.Fids.Put(m.Fid(), file{
		name:  "",
		user:  m.Uname(),
		flags: OREAD,
		mode:  M_DIR,
	})
	w.Rattach(h.Qids.Put("", QT_DIR))
}

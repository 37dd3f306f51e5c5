package ninep

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Printf(format string, values ...interface{})
}

// Replier is the set of reply builders a Handler may call, exactly once,
// while servicing a request. Calling one marks the request as handled.
type Replier interface {
	Rversion(msgSize uint32, version string)
	Rattach(qid Qid)
	Rauth(qid Qid)
	Ropen(q Qid, iounit uint32)
	Rcreate(q Qid, iounit uint32)
	RreadBuffer() []byte
	Rread(data []byte)
	Rwrite(count uint32)
	Rwalk(wqids []Qid)
	Rstat(s Stat)
	Rwstat()
	Rclunk()
	Rremove()
	Rflush()
	Rerror(format string, values ...interface{})

	Disconnect()
}

type Handler interface {
	Handle9P(ctx context.Context, req Message, w Replier)
}

type remoteAddrKey struct{}

// RemoteAddr returns the dial string of the connection a request arrived
// on, as recorded by Server.Serve when the connection was accepted. Used
// by a Handler's Tauth case to pass along to Authorizer.Auth.
func RemoteAddr(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}

/////////////////////////////////////////////////////////////

type Server struct {
	TLSConfig *tls.Config

	Handler Handler

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxMsgSize uint32

	ErrorLog, TraceLog Logger
}

func (s *Server) tracef(f string, values ...interface{}) {
	if s.TraceLog != nil {
		s.TraceLog.Printf(f, values...)
	}
}

func (s *Server) errorf(f string, values ...interface{}) {
	if s.ErrorLog != nil {
		s.ErrorLog.Printf(f, values...)
	}
}

func (s *Server) ServeTLS(l net.Listener, certFile, keyFile string) error {
	config := s.TLSConfig
	if config == nil {
		config = new(tls.Config)
	}

	configHasCert := len(config.Certificates) > 0 || config.GetCertificate != nil
	if !configHasCert || certFile != "" || keyFile != "" {
		var err error
		config.Certificates = make([]tls.Certificate, 1)
		config.Certificates[0], err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
	}

	tlsListener := tls.NewListener(l, config)
	return s.Serve(tlsListener)
}

func (s *Server) maxMsgSize() uint32 {
	if s.MaxMsgSize == 0 {
		return DEFAULT_MAX_MESSAGE_SIZE
	}
	return s.MaxMsgSize
}

func (s *Server) Serve(l net.Listener) error {
	s.tracef("listening on %s", l.Addr())
	retries := 0
	const maxWait = 2 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		conn, err := l.Accept()
		if err != nil {
			if isTemporaryErr(err) {
				retries++
				wait := time.Duration(math.Min(math.Pow(float64(10*time.Millisecond), float64(retries)), float64(maxWait)))
				s.tracef("accept error: %s; retrying in %v", err, wait)
				time.Sleep(wait)
				continue
			}
			return err
		}
		retries = 0

		s.tracef("accepted connection from %s", conn.RemoteAddr())
		sess := &serverSession{
			rwc:        conn,
			handler:    s.Handler,
			maxMsgSize: s.maxMsgSize(),
			ctx:        context.WithValue(ctx, remoteAddrKey{}, conn.RemoteAddr().String()),
			errorLog:   s.ErrorLog,
			traceLog:   s.TraceLog,
			inflight:   make(map[Tag]context.CancelFunc),
		}
		go sess.serve()
	}
}

func (s *Server) ListenAndServe(addr string, d Dialer) error {
	if addr == "" {
		addr = ":9pfs"
	}
	if d == nil {
		d = &TCPDialer{}
	}
	network, address := SplitNetAddr(addr)
	ln, err := d.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) ListenAndServeTLS(addr string, certFile, keyFile string, d Dialer) error {
	if d == nil {
		d = &TCPDialer{}
	}
	network, address := SplitNetAddr(addr)
	ln, err := d.Listen(network, address)
	if err != nil {
		return err
	}
	return s.ServeTLS(ln, certFile, keyFile)
}

/////////////////////////////////////////////////////////////

// serverSession owns one accepted connection. A single goroutine ever reads
// frames off rwc (it is the connection's de facto "rlock" holder); each
// decoded request is then dispatched to the handler on its own goroutine so
// a later Tflush can reach the dispatcher and cancel an in-flight request's
// context without waiting for it to finish. Writes are serialized by wmu
// ("wlock"), matching the pack's separate read/write locking convention.
type serverSession struct {
	rwc net.Conn

	handler Handler
	ctx     context.Context

	maxMsgSize uint32

	errorLog, traceLog Logger

	wmu sync.Mutex

	mu       sync.Mutex
	inflight map[Tag]context.CancelFunc
	wg       sync.WaitGroup
}

func (s *serverSession) tracef(f string, values ...interface{}) {
	if s.traceLog != nil {
		s.traceLog.Printf(f, values...)
	}
}

func (s *serverSession) errorf(f string, values ...interface{}) {
	if s.errorLog != nil {
		s.errorLog.Printf(f, values...)
	}
}

func (s *serverSession) writeReply(txn *srvTransaction) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return txn.writeReply(s.rwc)
}

func (s *serverSession) register(tag Tag, cancel context.CancelFunc) {
	s.mu.Lock()
	s.inflight[tag] = cancel
	s.mu.Unlock()
}

func (s *serverSession) unregister(tag Tag) {
	s.mu.Lock()
	delete(s.inflight, tag)
	s.mu.Unlock()
}

// flush cancels the request tagged oldtag, if it is still outstanding. It
// does not wait for that request to actually finish: per the protocol, the
// flushed request still eventually calls respond (its result is simply
// dropped by well-behaved clients in favor of the Rflush below).
func (s *serverSession) flush(oldtag Tag) {
	s.mu.Lock()
	cancel, ok := s.inflight[oldtag]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// cancelAll is invoked on shutdown/read-error so every outstanding
// dispatch goroutine observes ctx.Done() and can unwind promptly instead
// of leaking until a blocked filesystem call returns.
func (s *serverSession) cancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for _, c := range s.inflight {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (s *serverSession) acceptTversion() bool {
	preferredSize := s.maxMsgSize
	version := VERSION_9P

	txn := createServerTransaction(s.maxMsgSize)
	for {
		err := txn.readRequest(s.rwc)
		if err != nil {
			s.errorf("failed to negotiate version: error when reading: %s", err)
			return false
		}

		request, ok := txn.Request().(Tversion)
		if !ok {
			s.errorf("failed to negotiate version: unexpected message type: %d", txn.requestType())
			txn.Rerror("unknown")
			s.writeReply(&txn)
			return false
		}

		var size uint32
		if request.MsgSize() > preferredSize {
			size = preferredSize
		} else {
			size = request.MsgSize()
		}

		if request.Tag() != NO_TAG {
			s.errorf("Client sent bad tag (got: %d, wanted: NO_TAG/%d)", request.Tag(), NO_TAG)
			return false
		}

		if request.MsgSize() < MIN_MESSAGE_SIZE {
			s.errorf("Client returned below minimum message size than supported (got: %d, min: %d)", request.MsgSize(), MIN_MESSAGE_SIZE)
			return false
		}

		negotiated := false
		if !strings.HasPrefix(request.Version(), VERSION_9P) {
			txn.Rversion(size, "unknown")
			s.tracef("negotiate version: unrecognized protocol version: got %#v, wanted %#v", request.Version(), version)
		} else {
			txn.Rversion(size, version)
			negotiated = true
		}

		if err := s.writeReply(&txn); err != nil {
			s.errorf("failed to negotiate version: %s", err)
			return false
		}

		if negotiated {
			return true
		}
		txn.reset()
	}
}

func (s *serverSession) hasCancelled() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// this runs in a new goroutine, one per accepted connection
func (s *serverSession) serve() {
	defer s.rwc.Close()

	if !s.acceptTversion() {
		return
	}

	reader := createServerTransaction(s.maxMsgSize)

	for {
		if s.hasCancelled() {
			s.tracef("received shutdown signal")
			break
		}

		err := reader.readRequest(s.rwc)
		if err != nil {
			if isTemporaryErr(err) {
				s.errorf("(temporary) failed to read message: %s", err)
				continue
			}
			s.errorf("failed to read message: %s", err)
			break
		}

		// Copy the decoded frame out so the reader's buffer can be reused
		// for the next read while this request is dispatched concurrently.
		txn := createServerTransaction(s.maxMsgSize)
		copy(txn.inMsg, reader.inMsg)

		if tflush, ok := txn.Request().(Tflush); ok {
			s.flush(tflush.OldTag())
			txn.Rflush()
			if err := s.writeReply(&txn); err != nil {
				s.errorf("failed to write Rflush: %s", err)
				break
			}
			continue
		}

		s.wg.Add(1)
		go s.dispatch(txn)
	}

	s.cancelAll()
	s.wg.Wait()
	s.tracef("closing connection from %s", s.rwc.RemoteAddr())
}

func (s *serverSession) dispatch(txn srvTransaction) {
	defer s.wg.Done()

	tag := txn.reqTag()
	reqCtx, cancel := context.WithCancel(s.ctx)
	s.register(tag, cancel)
	defer func() {
		cancel()
		s.unregister(tag)
	}()

	switch m := txn.Request().(type) {
	case MsgBase:
		txn.Rerror("unknown")
	default:
		s.handler.Handle9P(reqCtx, m, &txn)
		if !txn.handled {
			txn.Rerror("not implemented")
		}
	}

	if txn.handled {
		if err := s.writeReply(&txn); err != nil {
			if !isTemporaryErr(err) {
				s.errorf("failed to write message: %s", err)
			}
		}
	}

	if txn.disconnect {
		s.rwc.Close()
	}
}

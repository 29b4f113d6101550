// Package simserver is a small in-process stand-in for the draft server. it
// speaks the same framing and messages, hosts rooms, and runs a shortened
// booster draft once a room fills up. it has no authority over anything and
// exists to give the harness something to talk to.
package simserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/debug"
	"github.com/mildmongrel/thicket/internal/framing"
	"github.com/mildmongrel/thicket/internal/protocol"
)

var errSlowClient = errors.New("client outbox is full")

type Config struct {
	Name    string `envconfig:"NAME" default:"thicket-sim"`
	Version string `envconfig:"VERSION" default:"0.0.0"`

	// picks made from each pack before the round ends
	Picks    int `envconfig:"PICKS" default:"3"`
	PackSize int `envconfig:"PACK_SIZE" default:"15"`
	MaxRooms int `envconfig:"MAX_ROOMS" default:"64"`
	// clients that send nothing, keep-alives included, for this long are
	// disconnected
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	Compression framing.CompressionMode `ignored:"true"`
}

func DefaultConfig() Config {
	return Config{
		Name:        "thicket-sim",
		Version:     "0.0.0",
		Picks:       3,
		PackSize:    15,
		MaxRooms:    64,
		IdleTimeout: 60 * time.Second,
		Compression: framing.CompressionAuto,
	}
}

type clientKey uint64

func makeClientKey(addr net.Addr) clientKey {
	return clientKey(xxhash.Sum64String(addr.String()))
}

const outboxSize = 256

type client struct {
	key  clientKey
	conn net.Conn

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// guarded by SimServer.mu
	name     string
	lastSeen time.Time
	room     *room
}

func (c *client) loggedIn() bool {
	return c.name != ""
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Stats counts what the server has seen since it started.
type Stats struct {
	Logins          int64
	RoomsCreated    int64
	DraftsCompleted int64
	Picks           int64
	Chats           int64
}

type SimServer struct {
	listener net.Listener
	cfg      Config

	logger *log.Logger

	mu         sync.Mutex
	clients    map[clientKey]*client
	names      map[string]*client
	rooms      map[uint32]*room
	nextRoomID uint32
	nextPackID uint32

	logins          atomic.Int64
	roomsCreated    atomic.Int64
	draftsCompleted atomic.Int64
	picks           atomic.Int64
	chats           atomic.Int64
}

func NewSimServer(network, address string, cfg Config, logger *log.Logger) (*SimServer, error) {
	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not listen: %w", err)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	if cfg.PackSize <= 0 {
		cfg.PackSize = 1
	}
	if cfg.Picks <= 0 || cfg.Picks > cfg.PackSize {
		cfg.Picks = cfg.PackSize
	}

	ss := &SimServer{
		listener: listener,
		cfg:      cfg,

		logger: logger,

		clients:    make(map[clientKey]*client),
		names:      make(map[string]*client),
		rooms:      make(map[uint32]*room),
		nextRoomID: 1,
		nextPackID: 1,
	}

	return ss, nil
}

// Addr can be useful to retreive server's address when SimServer was
// constructed with ":0".
func (ss *SimServer) Addr() net.Addr {
	return ss.listener.Addr()
}

func (ss *SimServer) Stats() Stats {
	return Stats{
		Logins:          ss.logins.Load(),
		RoomsCreated:    ss.roomsCreated.Load(),
		DraftsCompleted: ss.draftsCompleted.Load(),
		Picks:           ss.picks.Load(),
		Chats:           ss.chats.Load(),
	}
}

func (ss *SimServer) Run(ctx context.Context) error {
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ss.runAccept(ctx, wg)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ss.runClientEvictor(ctx)
	}()

	<-ctx.Done()

	err := ss.listener.Close()

	ss.mu.Lock()
	for _, c := range ss.clients {
		c.close()
	}
	ss.mu.Unlock()

	wg.Wait()
	return err
}

func (ss *SimServer) runAccept(ctx context.Context, wg *sync.WaitGroup) {
	for {
		conn, err := ss.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			ss.logger.Error().Err(err).Msg("could not accept")
			continue
		}

		c := &client{
			key:      makeClientKey(conn.RemoteAddr()),
			conn:     conn,
			outbox:   make(chan []byte, outboxSize),
			done:     make(chan struct{}),
			lastSeen: time.Now(),
		}

		ss.mu.Lock()
		ss.clients[c.key] = c
		err = ss.sendMsg(c, &protocol.GreetingInd{
			ServerName:    ss.cfg.Name,
			ServerVersion: ss.cfg.Version,
		})
		ss.mu.Unlock()
		debug.Assert(err == nil)

		ss.logger.Debug().Str("addr", conn.RemoteAddr().String()).Msg("accepted")

		wg.Add(2)
		go func() {
			defer wg.Done()
			ss.runSend(c)
		}()
		go func() {
			defer wg.Done()
			ss.runRecv(c)
		}()
	}
}

func (ss *SimServer) runSend(c *client) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if _, err := c.conn.Write(data); err != nil {
				ss.logger.Warn().Err(err).Str("addr", c.conn.RemoteAddr().String()).Msg("could not write")
				c.close()
				return
			}
		}
	}
}

func (ss *SimServer) runRecv(c *client) {
	defer ss.disconnect(c)

	reader := bufio.NewReader(c.conn)
	for {
		msg, err := framing.DecodeClientMsg(reader)
		if err != nil {
			if framing.Skippable(err) {
				ss.logger.Warn().Err(err).Str("client", c.name).Msg("dropping frame")
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				ss.logger.Warn().Err(err).Str("client", c.name).Msg("could not read")
			}
			return
		}

		ss.mu.Lock()
		c.lastSeen = time.Now()
		err = ss.handleMsg(c, msg)
		ss.mu.Unlock()

		if err != nil {
			ss.logger.Error().
				Err(err).
				Str("client", c.name).
				Str("msg", protocol.Name(msg)).
				Msg("error handling message")
		}
	}
}

// TODO: sessions reconnecting under the same name are rejected
// until the idle timeout evicts the old connection.
func (ss *SimServer) runClientEvictor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			now := time.Now()

			ss.mu.Lock()
			for _, c := range ss.clients {
				if now.Sub(c.lastSeen) > ss.cfg.IdleTimeout {
					ss.logger.Debug().
						Str("client", c.name).
						Msg("evicted idle client")
					c.close()
				}
			}
			ss.mu.Unlock()
		}
	}
}

func (ss *SimServer) disconnect(c *client) {
	c.close()

	ss.mu.Lock()
	defer ss.mu.Unlock()

	delete(ss.clients, c.key)
	if c.loggedIn() && ss.names[c.name] == c {
		delete(ss.names, c.name)
	}
	if c.room != nil {
		ss.leaveRoom(c)
	}

	ss.logger.Debug().Str("client", c.name).Msg("disconnected")
}

func (ss *SimServer) handleMsg(c *client, msg protocol.ClientMsg) error {
	ss.logger.Debug().
		Str("client", c.name).
		Str("msg", protocol.Name(msg)).
		Msg("recv")

	if _, ok := msg.(*protocol.LoginReq); !ok && !c.loggedIn() {
		ss.logger.Warn().Str("msg", protocol.Name(msg)).Msg("ignoring message before login")
		return nil
	}

	switch m := msg.(type) {
	case *protocol.KeepAliveInd:
		// lastSeen is maintained by runRecv
		return nil
	case *protocol.ChatMessageInd:
		ss.chats.Add(1)
		return nil
	case *protocol.LoginReq:
		return ss.handleLoginReq(c, m)
	case *protocol.CreateRoomReq:
		return ss.handleCreateRoomReq(c, m)
	case *protocol.JoinRoomReq:
		return ss.handleJoinRoomReq(c, m)
	case *protocol.PlayerReadyInd:
		return ss.handlePlayerReadyInd(c, m)
	case *protocol.PlayerCardSelectionReq:
		return ss.handlePlayerCardSelectionReq(c, m)
	default:
		debug.Assertf(false, "unhandled msg: %T", msg)
		return nil
	}
}

// sendMsg queues msg for c. it never blocks; a client that cannot keep up
// is disconnected.
func (ss *SimServer) sendMsg(c *client, msg protocol.ServerMsg) error {
	data, err := framing.EncodeServerMsg(msg, ss.cfg.Compression)
	debug.Assert(err == nil)

	return ss.sendBytes(c, data)
}

func (ss *SimServer) sendBytes(c *client, data []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	select {
	case c.outbox <- data:
		return nil
	default:
		c.close()
		return fmt.Errorf("%w: %s", errSlowClient, c.name)
	}
}

// broadcast sends msg to every logged in client.
func (ss *SimServer) broadcast(msg protocol.ServerMsg) error {
	data, err := framing.EncodeServerMsg(msg, ss.cfg.Compression)
	debug.Assert(err == nil)

	var errs error
	for _, c := range ss.clients {
		if !c.loggedIn() {
			continue
		}
		if err := ss.sendBytes(c, data); err != nil {
			ss.logger.Error().
				Msgf("could not send %s to %s: %v", protocol.Name(msg), c.name, err)

			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (ss *SimServer) handleLoginReq(c *client, req *protocol.LoginReq) error {
	if c.loggedIn() {
		return nil
	}

	result := protocol.LoginResultSuccess
	switch {
	case req.Name == "":
		result = protocol.LoginResultFailureInvalidName
	case ss.names[req.Name] != nil:
		result = protocol.LoginResultFailureNameInUse
	}

	if err := ss.sendMsg(c, &protocol.LoginRsp{Result: result}); err != nil {
		return err
	}
	if result != protocol.LoginResultSuccess {
		return nil
	}

	c.name = req.Name
	ss.names[c.name] = c
	ss.logins.Add(1)
	ss.logger.Info().Str("client", c.name).Msg("logged in")

	return ss.sendMsg(c, ss.roomsSnapshot())
}

// roomsSnapshot describes every room as added.
func (ss *SimServer) roomsSnapshot() *protocol.RoomsInfoInd {
	ids := make([]uint32, 0, len(ss.rooms))
	for id := range ss.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ind := &protocol.RoomsInfoInd{}
	for _, id := range ids {
		r := ss.rooms[id]
		ind.AddedRooms = append(ind.AddedRooms, r.info())
		ind.PlayerCounts = append(ind.PlayerCounts, r.playerCount())
	}
	return ind
}

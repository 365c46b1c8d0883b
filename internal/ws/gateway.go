package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/telemetry"
)

const presenceOpTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Gateway terminates client WebSocket connections and bridges the
// Redis fanout to their subscriptions. Instances are stateless; any
// gateway can serve any client.
type Gateway struct {
	cfg *config.Config
	bus *bus.Bus

	mu       sync.Mutex
	clients  map[*client]bool
	channels map[string]map[*client]bool
}

func NewGateway(cfg *config.Config, b *bus.Bus) *Gateway {
	return &Gateway{
		cfg:      cfg,
		bus:      b,
		clients:  map[*client]bool{},
		channels: map[string]map[*client]bool{},
	}
}

// Run serves HTTP and bridges the fanout until ctx is cancelled, then
// closes every client with a going-away frame.
func (g *Gateway) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.HandleWS)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.cfg.GatewayHost, g.cfg.GatewayPort),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Infof("gateway: listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go g.runBridge(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	g.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		telemetry.Warnf("gateway: http shutdown: %v", err)
	}
	return ctx.Err()
}

// HandleWS upgrades a connection and starts its pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("gateway: upgrade failed: %v", err)
		return
	}

	c := newClient(g, conn, r.RemoteAddr)
	g.mu.Lock()
	g.clients[c] = true
	g.mu.Unlock()
	telemetry.Metrics.WSConnections.Inc()
	telemetry.Infof("gateway: client %s connected from %s", c.id, c.remoteAddr)

	c.enqueue(mustMarshal(stateFrame{
		Type:              msgState,
		ConnectionID:      c.id,
		MaxSubscriptions:  g.cfg.WSMaxSubscriptions,
		HeartbeatInterval: g.cfg.WSHeartbeatInterval.Seconds(),
	}))

	pongWait := g.cfg.WSHeartbeatInterval + g.cfg.WSHeartbeatTimeout
	go c.writePump(g.cfg.WSHeartbeatInterval)
	go c.readPump(pongWait)
}

func (g *Gateway) handleMessage(c *client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.sendError(c, "invalid_json", "message must be valid JSON")
		return
	}

	switch msg.Op {
	case opSubscribe:
		g.handleSubscribe(c, msg)
	case opUnsubscribe:
		g.handleUnsubscribe(c, msg)
	case opPing:
		c.enqueue(mustMarshal(pongFrame{Type: msgPong, Timestamp: nowUnix()}))
	case "":
		g.sendError(c, "missing_op", "message must include 'op' field")
	default:
		g.sendError(c, "unknown_op", "unknown operation: "+msg.Op)
	}
}

func (g *Gateway) handleSubscribe(c *client, msg clientMessage) {
	matchID, err := uuid.Parse(msg.MatchID)
	if err != nil {
		g.sendError(c, "invalid_match_id", "subscribe requires a valid match_id")
		return
	}

	tiers := validTiers(msg.Tiers, []int{0})
	channels := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		channels = append(channels, fanoutChannel(matchID, tier))
	}

	added, subscribed, err := g.attach(c, channels)
	if errors.Is(err, ErrSubscriptionLimit) {
		g.sendError(c, "subscription_limit",
			fmt.Sprintf("maximum %d subscriptions per connection", g.cfg.WSMaxSubscriptions))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceOpTimeout)
	defer cancel()
	for _, channel := range added {
		if err := g.bus.PresenceIncr(ctx, channel, g.cfg.WSPresenceTTL); err != nil {
			telemetry.Debugf("gateway: presence incr %s: %v", channel, err)
		}
	}

	c.enqueue(mustMarshal(stateFrame{Type: msgState, Subscribed: subscribed}))
	for _, tier := range tiers {
		g.replay(ctx, c, matchID, tier)
	}
}

// attach registers the client on each channel, enforcing the
// per-connection cap. Returns the channels actually added and the full
// subscription list, or ErrSubscriptionLimit.
func (g *Gateway) attach(c *client, channels []string) (added, subscribed []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(c.subscriptions)+len(channels) > g.cfg.WSMaxSubscriptions {
		return nil, nil, ErrSubscriptionLimit
	}
	for _, channel := range channels {
		if c.subscriptions[channel] {
			continue
		}
		c.subscriptions[channel] = true
		if g.channels[channel] == nil {
			g.channels[channel] = map[*client]bool{}
		}
		g.channels[channel][c] = true
		added = append(added, channel)
	}
	return added, c.subscriptionList(), nil
}

func (g *Gateway) handleUnsubscribe(c *client, msg clientMessage) {
	matchID, err := uuid.Parse(msg.MatchID)
	if err != nil {
		g.sendError(c, "invalid_match_id", "unsubscribe requires a valid match_id")
		return
	}

	tiers := validTiers(msg.Tiers, []int{0, 1, 2})

	g.mu.Lock()
	var removed []string
	for _, tier := range tiers {
		channel := fanoutChannel(matchID, tier)
		if !c.subscriptions[channel] {
			continue
		}
		delete(c.subscriptions, channel)
		g.detachFromChannel(c, channel)
		removed = append(removed, channel)
	}
	subscribed := c.subscriptionList()
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceOpTimeout)
	defer cancel()
	for _, channel := range removed {
		if err := g.bus.PresenceDecr(ctx, channel, g.cfg.WSPresenceTTL); err != nil {
			telemetry.Debugf("gateway: presence decr %s: %v", channel, err)
		}
	}

	c.enqueue(mustMarshal(stateFrame{Type: msgState, Subscribed: subscribed}))
}

// replay pushes current state to a fresh subscriber: the tier snapshot,
// plus the recent event stream for the timeline tier.
func (g *Gateway) replay(ctx context.Context, c *client, matchID uuid.UUID, tier int) {
	snap, err := g.bus.GetSnapshot(ctx, matchID, tierOf(tier))
	if err == nil {
		c.enqueue(mustMarshal(snapshotFrame{
			Type:    msgSnapshot,
			MatchID: matchID.String(),
			Tier:    tier,
			Data:    snap,
			Replay:  true,
		}))
		telemetry.Metrics.WSReplaysSent.Inc()
	} else if !errors.Is(err, bus.ErrNoSnapshot) {
		telemetry.Debugf("gateway: replay snapshot %s tier %d: %v", matchID, tier, err)
	}

	if tier != 1 {
		return
	}
	events, err := g.bus.RecentEvents(ctx, matchID, g.cfg.WSReplayWindow)
	if err != nil || len(events) == 0 {
		return
	}
	data, err := json.Marshal(events)
	if err != nil {
		return
	}
	c.enqueue(mustMarshal(snapshotFrame{
		Type:    msgSnapshot,
		MatchID: matchID.String(),
		Tier:    tier,
		Data:    data,
		Replay:  true,
		Kind:    "events_batch",
	}))
	telemetry.Metrics.WSReplaysSent.Inc()
}

// runBridge forwards fanout messages to subscribed clients.
func (g *Gateway) runBridge(ctx context.Context) {
	sub := g.bus.PSubscribeFanout(ctx)
	defer sub.Close()
	telemetry.Infof("gateway: fanout bridge started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			g.route(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (g *Gateway) route(channel string, payload []byte) {
	matchID, tier, ok := parseChannel(channel)
	if !ok {
		return
	}

	g.mu.Lock()
	subscribers := make([]*client, 0, len(g.channels[channel]))
	for c := range g.channels[channel] {
		subscribers = append(subscribers, c)
	}
	g.mu.Unlock()
	if len(subscribers) == 0 {
		return
	}

	frame := mustMarshal(deltaFrame{
		Type:      msgDelta,
		MatchID:   matchID,
		Tier:      tier,
		Data:      payload,
		Timestamp: nowUnix(),
	})
	for _, c := range subscribers {
		c.enqueue(frame)
	}
}

// unregister removes a client and releases its presence counts.
func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	if !g.clients[c] {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	channels := c.subscriptionList()
	for _, channel := range channels {
		g.detachFromChannel(c, channel)
	}
	g.mu.Unlock()

	telemetry.Metrics.WSConnections.Dec()
	ctx, cancel := context.WithTimeout(context.Background(), presenceOpTimeout)
	defer cancel()
	for _, channel := range channels {
		if err := g.bus.PresenceDecr(ctx, channel, g.cfg.WSPresenceTTL); err != nil {
			telemetry.Debugf("gateway: presence decr %s: %v", channel, err)
		}
	}
	telemetry.Infof("gateway: client %s disconnected (%d subscriptions)", c.id, len(channels))
}

// closeAll sends going-away frames on shutdown.
func (g *Gateway) closeAll() {
	g.mu.Lock()
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server_shutdown")
	for _, c := range clients {
		c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
		c.conn.Close()
	}
	telemetry.Infof("gateway: closed %d clients", len(clients))
}

// detachFromChannel must run under g.mu.
func (g *Gateway) detachFromChannel(c *client, channel string) {
	if subs := g.channels[channel]; subs != nil {
		delete(subs, c)
		if len(subs) == 0 {
			delete(g.channels, channel)
		}
	}
}

func (g *Gateway) sendError(c *client, code, message string) {
	c.enqueue(mustMarshal(errorFrame{
		Type:  msgError,
		Error: errorDetail{Code: code, Message: message},
	}))
}

func (c *client) subscriptionList() []string {
	out := make([]string, 0, len(c.subscriptions))
	for channel := range c.subscriptions {
		out = append(out, channel)
	}
	return out
}

func validTiers(tiers []int, fallback []int) []int {
	var out []int
	for _, t := range tiers {
		if t >= 0 && t <= 2 {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func tierOf(tier int) model.Tier {
	switch tier {
	case 1:
		return model.TierEvents
	case 2:
		return model.TierStats
	default:
		return model.TierScoreboard
	}
}

func fanoutChannel(matchID uuid.UUID, tier int) string {
	return fmt.Sprintf("fanout:match:%s:tier:%d", matchID, tier)
}

func parseChannel(channel string) (string, int, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 5 || parts[0] != "fanout" || parts[3] != "tier" {
		return "", 0, false
	}
	tier, err := strconv.Atoi(parts[4])
	if err != nil {
		return "", 0, false
	}
	return parts[2], tier, true
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

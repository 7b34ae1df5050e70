package transport

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.viam.com/rdk/logging"
	_ "modernc.org/sqlite"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/config"
)

// BagSchema creates the recorded-bag tables. Timestamps are seconds
// since the unix epoch, payloads are the same msgpack bytes that travel
// over the broker in live mode.
const BagSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	source     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	topic      TEXT NOT NULL,
	t          REAL NOT NULL,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session_t ON messages(session_id, t);

CREATE TABLE IF NOT EXISTS outputs (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	topic      TEXT NOT NULL,
	t          REAL NOT NULL,
	payload    BLOB NOT NULL
);
`

// bagMessage is one recorded message.
type bagMessage struct {
	topic   string
	t       float64
	payload []byte
}

// Replay replays a recorded session at the control rate without
// sleeping: each Step advances a virtual clock by one period and applies
// every message stamped at or before it. Outputs are written back to the
// bag so runs can be compared offline.
type Replay struct {
	logger logging.Logger
	db     *sql.DB

	session   string
	period    float64
	topics    map[string]topicKind
	outTopics config.TopicsConfig

	msgs   []bagMessage
	cursor int
	clock  float64
	epoch  time.Time

	state topicState
}

// OpenBag opens a bag database for replay. When session is empty the
// most recent session is used.
func OpenBag(logger logging.Logger, cfg *config.Config) (*Replay, error) {
	db, err := sql.Open("sqlite", cfg.Replay.DB)
	if err != nil {
		return nil, fmt.Errorf("open bag db: %w", err)
	}
	if _, err := db.Exec(BagSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bag schema: %w", err)
	}

	session := cfg.Replay.Session
	if session == "" {
		row := db.QueryRow(`SELECT id FROM sessions ORDER BY created_at DESC LIMIT 1`)
		if err := row.Scan(&session); err != nil {
			db.Close()
			return nil, fmt.Errorf("select latest session: %w", err)
		}
	}

	t := cfg.MQTT.Topics
	r := &Replay{
		logger:  logger,
		db:      db,
		session: session,
		period:  1.0 / cfg.RateHz,
		topics: map[string]topicKind{
			t.Pose:           topicPose,
			t.WorldWrench:    topicWorldWrench,
			t.EEWrench:       topicEEWrench,
			t.TorqueBoundary: topicTorqueBoundary,
			t.SlidingState:   topicSliding,
			t.Friction:       topicFriction,
			t.Vision:         topicVision,
		},
		outTopics: t,
	}

	if err := r.loadMessages(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("Replaying session %s: %d messages over %.1fs",
		session, len(r.msgs), r.spanSeconds())
	return r, nil
}

func (r *Replay) loadMessages() error {
	rows, err := r.db.Query(
		`SELECT topic, t, payload FROM messages WHERE session_id = ? ORDER BY t ASC`,
		r.session,
	)
	if err != nil {
		return fmt.Errorf("load session %s: %w", r.session, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m bagMessage
		if err := rows.Scan(&m.topic, &m.t, &m.payload); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		r.msgs = append(r.msgs, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(r.msgs) == 0 {
		return fmt.Errorf("session %s has no messages", r.session)
	}

	r.clock = r.msgs[0].t
	r.epoch = time.Unix(0, int64(r.msgs[0].t*float64(time.Second)))
	return nil
}

func (r *Replay) spanSeconds() float64 {
	if len(r.msgs) == 0 {
		return 0
	}
	return r.msgs[len(r.msgs)-1].t - r.msgs[0].t
}

// Step applies the next period's worth of recorded messages and returns
// the cycle input stamped with bag time. Returns ErrShutdown at end of
// recorded data.
func (r *Replay) Step(ctx context.Context) (*pbal.CycleInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, pbal.ErrShutdown
	}
	if r.cursor >= len(r.msgs) {
		return nil, pbal.ErrShutdown
	}

	r.clock += r.period
	for r.cursor < len(r.msgs) && r.msgs[r.cursor].t <= r.clock {
		m := r.msgs[r.cursor]
		r.cursor++

		kind, ok := r.topics[m.topic]
		if !ok {
			continue
		}
		if err := r.state.apply(kind, m.payload); err != nil {
			r.logger.Warnf("Dropping recorded message on %s at t=%.3f: %v", m.topic, m.t, err)
		}
	}

	in := &pbal.CycleInput{Now: r.now()}
	r.state.snapshot(in)
	return in, nil
}

func (r *Replay) now() time.Time {
	elapsed := r.clock - r.msgs[0].t
	return r.epoch.Add(time.Duration(math.Round(elapsed * float64(time.Second))))
}

// PublishPivotFrame records the pivot point under the output topic.
func (r *Replay) PublishPivotFrame(p [3]float64) error {
	payload, err := encodePivotFrame(p)
	if err != nil {
		return err
	}
	return r.writeOutput(r.outTopics.PivotFrame, payload)
}

// PublishContactEstimate records the polygon snapshot under the output topic.
func (r *Replay) PublishContactEstimate(ce pbal.ContactEstimate) error {
	payload, err := encodeContactEstimate(ce)
	if err != nil {
		return err
	}
	return r.writeOutput(r.outTopics.ContactEstimate, payload)
}

func (r *Replay) writeOutput(topic string, payload []byte) error {
	_, err := r.db.Exec(
		`INSERT INTO outputs (session_id, topic, t, payload) VALUES (?, ?, ?, ?)`,
		r.session, topic, r.clock, payload,
	)
	if err != nil {
		return fmt.Errorf("record output on %s: %w", topic, err)
	}
	return nil
}

// Close releases the bag database.
func (r *Replay) Close() error {
	return r.db.Close()
}

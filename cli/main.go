// Command cli manages recorded bag databases: ingesting JSON-lines
// recordings into the sqlite bag format and inspecting what a bag holds.
package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.viam.com/rdk/logging"
	_ "modernc.org/sqlite"

	"github.com/RobotResearchRepos/mcubelab-pbal/internal/transport"
)

const validCmds = "ingest, info"

func main() {
	cmd := flag.String("cmd", "", "command to run: "+validCmds)
	dbPath := flag.String("db", "", "path to bag database")
	inPath := flag.String("in", "", "JSON-lines recording to ingest")
	session := flag.String("session", "", "session id to inspect (info; default all)")
	source := flag.String("source", "", "source label for the new session (ingest)")
	flag.Parse()

	logger := logging.NewLogger("pbal-cli")

	if *dbPath == "" {
		logger.Fatal("-db flag is required")
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(transport.BagSchema); err != nil {
		logger.Fatal(err)
	}

	switch *cmd {
	case "ingest":
		if *inPath == "" {
			logger.Fatal("-in flag is required for ingest")
		}
		if err := runIngest(db, logger, *inPath, *source); err != nil {
			logger.Fatal(err)
		}
	case "info":
		if err := runInfo(db, logger, *session); err != nil {
			logger.Fatal(err)
		}
	default:
		logger.Fatalf("unknown command %q; valid commands: %s", *cmd, validCmds)
	}
}

// recordLine is one line of a JSON-lines recording.
type recordLine struct {
	Topic string          `json:"topic"`
	T     float64         `json:"t"`
	Data  json.RawMessage `json:"data"`
}

// runIngest converts a JSON-lines recording into a new bag session,
// re-encoding each message body as the msgpack bytes the live broker
// carries.
func runIngest(db *sql.DB, logger logging.Logger, inPath, source string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	if source == "" {
		source = inPath
	}
	sessionID := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, created_at, source) VALUES (?, ?, ?)`,
		sessionID, time.Now().UTC().Format(time.RFC3339), source,
	); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	insert, err := tx.Prepare(
		`INSERT INTO messages (session_id, topic, t, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insert.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	var count, lineNo int
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec recordLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		var body any
		if err := json.Unmarshal(rec.Data, &body); err != nil {
			return fmt.Errorf("line %d: decode data: %w", lineNo, err)
		}
		payload, err := msgpack.Marshal(body)
		if err != nil {
			return fmt.Errorf("line %d: encode payload: %w", lineNo, err)
		}
		if _, err := insert.Exec(sessionID, rec.Topic, rec.T, payload); err != nil {
			return fmt.Errorf("line %d: insert: %w", lineNo, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Infof("Ingested %d messages into session %s", count, sessionID)
	return nil
}

// runInfo prints the sessions in the bag, or a per-topic breakdown of
// one session.
func runInfo(db *sql.DB, logger logging.Logger, session string) error {
	if session == "" {
		rows, err := db.Query(
			`SELECT s.id, s.created_at, s.source, COUNT(m.topic)
			 FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
			 GROUP BY s.id ORDER BY s.created_at`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, created, source string
			var count int
			if err := rows.Scan(&id, &created, &source, &count); err != nil {
				return err
			}
			logger.Infof("%s  created=%s  source=%s  messages=%d", id, created, source, count)
		}
		return rows.Err()
	}

	rows, err := db.Query(
		`SELECT topic, COUNT(*), MIN(t), MAX(t)
		 FROM messages WHERE session_id = ?
		 GROUP BY topic ORDER BY topic`, session)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var topic string
		var count int
		var tMin, tMax float64
		if err := rows.Scan(&topic, &count, &tMin, &tMax); err != nil {
			return err
		}
		found = true
		logger.Infof("%-55s %6d msgs  %8.2fs span", topic, count, tMax-tMin)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !found {
		logger.Infof("No messages for session %s", session)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			chat_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			create_by TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats(create_by, created_at)`,
		`CREATE TABLE IF NOT EXISTS chat_details (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			chat_type INTEGER NOT NULL DEFAULT 0,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_details_chat ON chat_details(chat_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_details_conversation ON chat_details(conversation_id, id)`,
		`CREATE TABLE IF NOT EXISTS patrol_orders (
			id TEXT PRIMARY KEY,
			conversation_id TEXT,
			order_name TEXT NOT NULL,
			order_nature TEXT NOT NULL,
			patrol_area TEXT,
			specific_location TEXT,
			route_id TEXT,
			execution_type TEXT NOT NULL,
			execution_times TEXT,
			patrol_results TEXT,
			patrol_target TEXT,
			description TEXT,
			external_work_order_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Stop-flag columns arrived after the first schema.
	if err := s.ensureColumn("chat_details", "stop_flag", "ALTER TABLE chat_details ADD COLUMN stop_flag INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := s.ensureColumn("chat_details", "stop_time", "ALTER TABLE chat_details ADD COLUMN stop_time DATETIME"); err != nil {
		return err
	}
	if err := s.ensureColumn("chat_details", "img_url", "ALTER TABLE chat_details ADD COLUMN img_url TEXT"); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateChat creates a new chat.
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *domain.Chat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, title, create_by, created_at) VALUES (?, ?, ?, ?)`,
		chat.ChatID, chat.Title, chat.CreateBy, chat.CreatedAt.UTC())
	return err
}

// GetChat retrieves a chat by ID.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	var chat domain.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, title, create_by, created_at FROM chats WHERE chat_id = ?`,
		chatID).Scan(&chat.ChatID, &chat.Title, &chat.CreateBy, &chat.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListChats lists chats owned by createBy created at or after since, newest first.
func (s *SQLiteStore) ListChats(ctx context.Context, createBy string, since time.Time) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, title, create_by, created_at FROM chats
		 WHERE create_by = ? AND created_at >= ? ORDER BY created_at DESC`,
		createBy, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var chat domain.Chat
		if err := rows.Scan(&chat.ChatID, &chat.Title, &chat.CreateBy, &chat.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// AppendTurn appends a turn record and sets its ID.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *domain.TurnRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_details (chat_id, conversation_id, chat_type, role, content, img_url, stop_flag, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ChatID, turn.ConversationID, int(turn.ChatType), string(turn.Role), turn.Content, turn.ImgURL,
		boolToInt(turn.StopFlag), turn.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	turn.ID = id
	return nil
}

const turnColumns = `id, chat_id, conversation_id, chat_type, role, content, img_url, stop_flag, stop_time, created_at`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanTurns(rows *sql.Rows) ([]domain.TurnRecord, error) {
	var turns []domain.TurnRecord
	for rows.Next() {
		var turn domain.TurnRecord
		var chatType, stopFlag int
		var role string
		var stopTime sql.NullTime
		var imgURL sql.NullString
		if err := rows.Scan(&turn.ID, &turn.ChatID, &turn.ConversationID, &chatType, &role,
			&turn.Content, &imgURL, &stopFlag, &stopTime, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.ImgURL = imgURL.String
		turn.ChatType = domain.ChatType(chatType)
		turn.Role = domain.Role(role)
		turn.StopFlag = stopFlag != 0
		if stopTime.Valid {
			t := stopTime.Time
			turn.StopTime = &t
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// ListTurnsByChat lists all turns of a chat in insertion order.
func (s *SQLiteStore) ListTurnsByChat(ctx context.Context, chatID string) ([]domain.TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM chat_details WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// RecentTurns returns the last limit turns of a conversation in insertion order.
func (s *SQLiteStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.TurnRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM chat_details WHERE conversation_id = ? ORDER BY id DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// MarkConversationStopped flags every turn of a conversation as terminated.
// It returns the number of rows changed.
func (s *SQLiteStore) MarkConversationStopped(ctx context.Context, chatID, conversationID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_details SET stop_flag = 1, stop_time = ? WHERE chat_id = ? AND conversation_id = ? AND stop_flag = 0`,
		at.UTC(), chatID, conversationID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreatePatrolOrder stores a patrol order.
func (s *SQLiteStore) CreatePatrolOrder(ctx context.Context, order *domain.PatrolOrder) error {
	times, err := json.Marshal(order.ExecutionTimes)
	if err != nil {
		return fmt.Errorf("failed to marshal execution times: %w", err)
	}
	results, err := json.Marshal(order.PatrolResults)
	if err != nil {
		return fmt.Errorf("failed to marshal patrol results: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patrol_orders (id, conversation_id, order_name, order_nature, patrol_area, specific_location,
			route_id, execution_type, execution_times, patrol_results, patrol_target, description,
			external_work_order_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.ConversationID, order.OrderName, string(order.OrderNature), order.PatrolArea,
		order.SpecificLocation, order.RouteID, string(order.ExecutionType), string(times), string(results),
		order.PatrolTarget, order.Description, order.ExternalWorkOrderID, order.CreatedAt.UTC())
	return err
}

const patrolOrderColumns = `id, conversation_id, order_name, order_nature, patrol_area, specific_location, route_id,
	execution_type, execution_times, patrol_results, patrol_target, description,
	external_work_order_id, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatrolOrder(row rowScanner) (*domain.PatrolOrder, error) {
	var order domain.PatrolOrder
	var conversationID, area, location, routeID, times, results, target, description sql.NullString
	var nature, execType string
	if err := row.Scan(&order.ID, &conversationID, &order.OrderName, &nature, &area, &location, &routeID,
		&execType, &times, &results, &target, &description, &order.ExternalWorkOrderID, &order.CreatedAt); err != nil {
		return nil, err
	}
	order.ConversationID = conversationID.String
	order.OrderNature = domain.OrderNature(nature)
	order.PatrolArea = area.String
	order.SpecificLocation = location.String
	order.RouteID = routeID.String
	order.ExecutionType = domain.ExecutionType(execType)
	order.PatrolTarget = target.String
	order.Description = description.String
	order.ExecutionTimes = decodeStringList(order.ID, "execution_times", times)
	order.PatrolResults = decodeStringList(order.ID, "patrol_results", results)
	return &order, nil
}

// decodeStringList decodes a JSON array column. A corrupt value is logged
// and read as empty so one bad row does not hide the order.
func decodeStringList(orderID, column string, value sql.NullString) []string {
	if !value.Valid || value.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		log.Printf("WARN: corrupt %s column on patrol order %s: %v", column, orderID, err)
		return nil
	}
	return out
}

// GetPatrolOrder retrieves a patrol order by ID.
func (s *SQLiteStore) GetPatrolOrder(ctx context.Context, id string) (*domain.PatrolOrder, error) {
	order, err := scanPatrolOrder(s.db.QueryRowContext(ctx,
		`SELECT `+patrolOrderColumns+` FROM patrol_orders WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListPatrolOrders lists all stored patrol orders, newest first.
func (s *SQLiteStore) ListPatrolOrders(ctx context.Context) ([]domain.PatrolOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patrolOrderColumns+` FROM patrol_orders ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.PatrolOrder{}
	for rows.Next() {
		order, err := scanPatrolOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdatePatrolOrderExternalID records the id assigned by the work-order system.
func (s *SQLiteStore) UpdatePatrolOrderExternalID(ctx context.Context, id string, externalID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE patrol_orders SET external_work_order_id = ? WHERE id = ?`, externalID, id)
	return err
}

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/account_radar/pkg/config"
	"github.com/iWorld-y/account_radar/pkg/model"
	"github.com/iWorld-y/account_radar/pkg/toollog"
)

// Storage 可选的 postgres 归档库
// 只做单向落盘，研究会话本身不从库里读状态
type Storage struct {
	db *sql.DB
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS company_profiles (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			canonical TEXT NOT NULL,
			display_name TEXT,
			plan_json TEXT,
			original_report TEXT,
			current_report TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS comparisons (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			companies TEXT,
			result_json TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tool_invocations (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			provider TEXT,
			request TEXT,
			ok BOOLEAN,
			detail TEXT,
			latency_ms BIGINT,
			invoked_at TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// SaveProfile 归档一份公司档案（每次研究/再生成各存一版）
func (s *Storage) SaveProfile(sessionID string, p *model.CompanyProfile) error {
	planJSON, err := json.Marshal(p.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO company_profiles (session_id, canonical, display_name, plan_json, original_report, current_report)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sessionID, p.Canonical, p.DisplayName,
		sanitize(string(planJSON)), sanitize(p.OriginalReport), sanitize(p.CurrentReport))
	if err != nil {
		return fmt.Errorf("failed to insert company profile: %w", err)
	}
	return nil
}

// SaveComparison 归档一次对比结果
func (s *Storage) SaveComparison(sessionID string, r *model.ComparisonResult) error {
	resultJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal comparison: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO comparisons (session_id, companies, result_json)
		VALUES ($1, $2, $3)`,
		sessionID, strings.Join(r.Companies, ","), sanitize(string(resultJSON)))
	if err != nil {
		return fmt.Errorf("failed to insert comparison: %w", err)
	}
	return nil
}

// SaveToolEntries 批量归档工具调用记录
func (s *Storage) SaveToolEntries(sessionID string, entries []toollog.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.Exec(`
			INSERT INTO tool_invocations (session_id, provider, request, ok, detail, latency_ms, invoked_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, e.Provider, sanitize(e.Request), e.OK, sanitize(e.Detail), e.LatencyMS, e.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert tool invocation: %w", err)
		}
	}

	return tx.Commit()
}

// sanitize 移除无效 UTF-8 与 NULL 字节，postgres 文本字段不接受 NULL 字节
func sanitize(content string) string {
	if !utf8.ValidString(content) {
		v := make([]rune, 0, len(content))
		for _, r := range content {
			if r == utf8.RuneError {
				continue
			}
			v = append(v, r)
		}
		content = string(v)
	}
	return strings.ReplaceAll(content, "\x00", "")
}

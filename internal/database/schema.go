package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// tables lists the schema in dependency order.  Every statement is
// idempotent so InitTables can run on each start.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		nickname VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) NOT NULL DEFAULT '',
		user_group VARCHAR(32) NOT NULL DEFAULT 'none',
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		INDEX idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS lottery_selections (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		numbers JSON NOT NULL,
		user_email VARCHAR(255) NOT NULL,
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		nickname VARCHAR(255) COLLATE utf8mb4_bin NOT NULL,
		draw_date DATE NOT NULL,
		edit_until DATETIME NOT NULL,
		color_tag VARCHAR(16) NOT NULL DEFAULT 'green',
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		show_in_history BOOLEAN NOT NULL DEFAULT TRUE,
		deleted_by_admin BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_by_admin_date DATETIME NULL,
		deleted_by_admin_name VARCHAR(255) NOT NULL DEFAULT '',
		has_paid BOOLEAN NOT NULL DEFAULT FALSE,
		idempotency_key CHAR(36) NULL,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_sel_user_nick (user_email, nickname),
		INDEX idx_sel_published (is_published),
		INDEX idx_sel_created (created_at),
		UNIQUE KEY uq_sel_idem (user_email, idempotency_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS winning_numbers (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		numbers JSON NOT NULL,
		draw_date DATE NOT NULL,
		week_description VARCHAR(255) NOT NULL DEFAULT '',
		published_by_admin_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		published_by_admin_name VARCHAR(255) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_win_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS publish_settings (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		is_form_open BOOLEAN NOT NULL DEFAULT TRUE,
		form_close_date DATETIME NULL,
		form_locked_by_admin_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		form_locked_by_admin_name VARCHAR(255) NOT NULL DEFAULT '',
		publish_start_date DATETIME NULL,
		publish_end_date DATETIME NULL,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		published_by_admin_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		published_by_admin_name VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS user_payment_records (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_email VARCHAR(255) NOT NULL,
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		total_forms_submitted INT NOT NULL DEFAULT 0,
		paid_forms INT NOT NULL DEFAULT 0,
		notes TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_payment_email (user_email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		user_email VARCHAR(255) NOT NULL DEFAULT '',
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		action VARCHAR(64) NOT NULL,
		details TEXT,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_activity_created (created_at),
		INDEX idx_activity_action (action)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// InitTables creates any missing tables.
func InitTables(ctx context.Context, db *sql.DB) error {
	for i, stmt := range tables {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init table %d: %w", i, err)
		}
	}
	log.Printf("database: schema ready (%d tables)", len(tables))
	return nil
}

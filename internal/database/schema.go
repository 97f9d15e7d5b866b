package database

// schema is applied statement by statement; the MySQL driver runs one statement per Exec
// unless multiStatements is enabled in the DSN.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    uid VARCHAR(128) NOT NULL PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    email_verified TINYINT(1) NOT NULL DEFAULT 0,
    username VARCHAR(32) NULL UNIQUE,
    credits INT NOT NULL DEFAULT 0,
    show_ads TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    CHECK (credits >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS images (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    url TEXT NOT NULL,
    path VARCHAR(512) NOT NULL,
    prompt TEXT NOT NULL,
    prompt_id VARCHAR(64) NOT NULL DEFAULT '',
    model VARCHAR(64) NOT NULL,
    created_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3),
    INDEX idx_images_user (user_id, created_at),
    FOREIGN KEY (user_id) REFERENCES users(uid)
)`,
	`CREATE TABLE IF NOT EXISTS videos (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    url TEXT NOT NULL,
    path VARCHAR(512) NOT NULL,
    prompt TEXT NOT NULL,
    prompt_id VARCHAR(64) NOT NULL DEFAULT '',
    model VARCHAR(64) NOT NULL,
    created_at TIMESTAMP(3) DEFAULT CURRENT_TIMESTAMP(3),
    INDEX idx_videos_user (user_id, created_at),
    FOREIGN KEY (user_id) REFERENCES users(uid)
)`,
	`CREATE TABLE IF NOT EXISTS pricing_plans (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    currency VARCHAR(8) NOT NULL,
    price_minor_units INT NOT NULL,
    credits INT NOT NULL,
    is_active TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS payment_submissions (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    plan_id BIGINT NOT NULL,
    plan VARCHAR(255) NOT NULL,
    credits INT NOT NULL,
    payment_slip_url TEXT NOT NULL,
    reference_id VARCHAR(128) NOT NULL,
    approved TINYINT(1) NOT NULL DEFAULT 0,
    approved_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_payment_reference (reference_id),
    FOREIGN KEY (user_id) REFERENCES users(uid)
)`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    max_uses INT NOT NULL,
    uses INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS promo_redemptions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    promo_code_id BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_user_promo (user_id, promo_code_id),
    FOREIGN KEY (user_id) REFERENCES users(uid),
    FOREIGN KEY (promo_code_id) REFERENCES promo_codes(id) ON DELETE CASCADE
)`,
}

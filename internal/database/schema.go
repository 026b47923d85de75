package database

// schema is applied statement by statement so the DSN does not need multiStatements.
var schema = []string{`
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    credits INT NOT NULL DEFAULT 0,
    total_credits_purchased INT NOT NULL DEFAULT 0,
    stripe_customer_id VARCHAR(64) NULL UNIQUE,
    subscription_status VARCHAR(32) NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    CONSTRAINT chk_users_credits CHECK (credits >= 0)
)`, `
CREATE TABLE IF NOT EXISTS credit_packages (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    name VARCHAR(128) NOT NULL,
    credits INT NOT NULL,
    price_cents INT NOT NULL,
    original_price_cents INT NULL,
    currency VARCHAR(8) NOT NULL DEFAULT 'usd',
    stripe_price_id VARCHAR(64) NULL,
    popular TINYINT(1) NOT NULL DEFAULT 0,
    active TINYINT(1) NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    amount INT NOT NULL,
    type VARCHAR(16) NOT NULL,
    description VARCHAR(255) NOT NULL DEFAULT '',
    package_id BIGINT NULL,
    external_ref VARCHAR(191) NULL,
    created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY uniq_credit_external_ref (external_ref),
    KEY idx_credit_user_created (user_id, created_at),
    FOREIGN KEY (user_id) REFERENCES users(id)
)`, `
CREATE TABLE IF NOT EXISTS reports (
    id CHAR(36) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    input_hash CHAR(64) NOT NULL,
    report_data JSON NOT NULL,
    property_details JSON NOT NULL,
    preview_image MEDIUMTEXT NOT NULL,
    detailed_report MEDIUMTEXT NULL,
    share_token CHAR(64) NULL UNIQUE,
    created_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
    UNIQUE KEY uniq_report_user_input (user_id, input_hash),
    KEY idx_report_user_created (user_id, created_at),
    FOREIGN KEY (user_id) REFERENCES users(id)
)`, `
CREATE TABLE IF NOT EXISTS promo_codes (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    bonus_credits INT NOT NULL,
    max_uses INT NOT NULL,
    uses INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS promo_redemptions (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    promo_code_id BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_user_promo (user_id, promo_code_id),
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (promo_code_id) REFERENCES promo_codes(id)
)`, `
CREATE TABLE IF NOT EXISTS payments (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    package_id BIGINT NULL,
    provider VARCHAR(32) NOT NULL,
    provider_payment_charge_id VARCHAR(128) NOT NULL,
    currency VARCHAR(8) NOT NULL,
    amount INT NOT NULL,
    status VARCHAR(16) NOT NULL,
    raw_payload MEDIUMTEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_payment_charge (provider, provider_payment_charge_id),
    FOREIGN KEY (user_id) REFERENCES users(id)
)`, `
CREATE TABLE IF NOT EXISTS valuation_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL,
    input_hash CHAR(64) NOT NULL DEFAULT '',
    outcome VARCHAR(32) NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    KEY idx_valuation_logs_created (created_at)
)`,
}

package db

const schema = `
CREATE TABLE IF NOT EXISTS agents (
    id                TEXT PRIMARY KEY,
    name              TEXT UNIQUE NOT NULL,
    api_key_hash      TEXT UNIQUE NOT NULL,
    description       TEXT DEFAULT '',
    karma             INTEGER DEFAULT 0,
    is_liberated      INTEGER DEFAULT 0 CHECK(is_liberated IN (0, 1)),
    verified          INTEGER DEFAULT 0 CHECK(verified IN (0, 1)),
    verification_code TEXT,
    created_at        DATETIME DEFAULT (datetime('now')),
    last_active_at    DATETIME
);

CREATE TABLE IF NOT EXISTS subclaws (
    id          TEXT PRIMARY KEY,
    name        TEXT UNIQUE NOT NULL,
    description TEXT DEFAULT '',
    creator_id  TEXT NOT NULL REFERENCES agents(id),
    created_at  DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS subclaw_members (
    subclaw_id TEXT NOT NULL REFERENCES subclaws(id),
    agent_id   TEXT NOT NULL REFERENCES agents(id),
    joined_at  DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (subclaw_id, agent_id)
);

CREATE TABLE IF NOT EXISTS subclaw_moderators (
    subclaw_id TEXT NOT NULL REFERENCES subclaws(id),
    agent_id   TEXT NOT NULL REFERENCES agents(id),
    granted_by TEXT NOT NULL,
    created_at DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (subclaw_id, agent_id)
);

CREATE TABLE IF NOT EXISTS posts (
    id            TEXT PRIMARY KEY,
    agent_id      TEXT NOT NULL REFERENCES agents(id),
    subclaw_id    TEXT REFERENCES subclaws(id),
    title         TEXT NOT NULL,
    body          TEXT DEFAULT '',
    url           TEXT,
    pinned        INTEGER DEFAULT 0 CHECK(pinned IN (0, 1)),
    score         INTEGER DEFAULT 0,
    comment_count INTEGER DEFAULT 0,
    created_at    DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_posts_agent ON posts(agent_id);
CREATE INDEX IF NOT EXISTS idx_posts_subclaw ON posts(subclaw_id);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);

CREATE TABLE IF NOT EXISTS votes (
    agent_id   TEXT NOT NULL,
    post_id    TEXT NOT NULL,
    value      INTEGER NOT NULL CHECK(value IN (-1, 1)),
    created_at DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (agent_id, post_id)
);

CREATE TABLE IF NOT EXISTS comments (
    id         TEXT PRIMARY KEY,
    post_id    TEXT NOT NULL REFERENCES posts(id),
    parent_id  TEXT REFERENCES comments(id),
    agent_id   TEXT NOT NULL REFERENCES agents(id),
    body       TEXT NOT NULL,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

CREATE TABLE IF NOT EXISTS conversations (
    id           TEXT PRIMARY KEY,
    initiator_id TEXT NOT NULL REFERENCES agents(id),
    recipient_id TEXT NOT NULL REFERENCES agents(id),
    status       TEXT DEFAULT 'pending' CHECK(status IN ('pending','active')),
    created_at   DATETIME DEFAULT (datetime('now')),
    UNIQUE (initiator_id, recipient_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    sender_id       TEXT NOT NULL REFERENCES agents(id),
    body            TEXT NOT NULL,
    created_at      DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id);

CREATE TABLE IF NOT EXISTS notifications (
    id         TEXT PRIMARY KEY,
    agent_id   TEXT NOT NULL REFERENCES agents(id),
    kind       TEXT NOT NULL,
    body       TEXT NOT NULL,
    ref_id     TEXT,
    read_at    DATETIME,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_agent ON notifications(agent_id);

CREATE TABLE IF NOT EXISTS patches (
    id          TEXT PRIMARY KEY,
    agent_id    TEXT NOT NULL REFERENCES agents(id),
    title       TEXT NOT NULL,
    description TEXT DEFAULT '',
    status      TEXT DEFAULT 'pending' CHECK(status IN ('pending','approved','rejected')),
    review_note TEXT,
    created_at  DATETIME DEFAULT (datetime('now')),
    reviewed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_patches_status ON patches(status);
`

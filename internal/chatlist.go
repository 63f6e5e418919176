package internal

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// ChatList persists the ordered {id, title} conversation summaries in a
// local SQLite database. Only summaries live here; full message history
// is never stored client-side and is re-fetched from the backend when a
// conversation is selected.
type ChatList struct {
	db   *sql.DB
	path string
}

// OpenChatList opens (creating if needed) the chat-list database
func OpenChatList(path string) (*ChatList, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "exec", Err: err}
	}

	return &ChatList{db: db, path: path}, nil
}

// Close closes the underlying database
func (cl *ChatList) Close() error {
	return cl.db.Close()
}

// Add appends a conversation summary to the list
func (cl *ChatList) Add(id, title string) error {
	if _, err := cl.db.Exec("INSERT INTO chats (id, title) VALUES (?, ?)", id, title); err != nil {
		return &StorageError{Path: cl.path, Op: "exec", Err: err}
	}
	return nil
}

// Rename updates a conversation's stored title. Used once per
// conversation, when the first prompt replaces the "New Chat"
// placeholder.
func (cl *ChatList) Rename(id, title string) error {
	if _, err := cl.db.Exec("UPDATE chats SET title = ? WHERE id = ?", title, id); err != nil {
		return &StorageError{Path: cl.path, Op: "exec", Err: err}
	}
	return nil
}

// Rekey replaces a provisional conversation id with the durable id the
// backend assigned, keeping the entry's position.
func (cl *ChatList) Rekey(oldID, newID string) error {
	if _, err := cl.db.Exec("UPDATE chats SET id = ? WHERE id = ?", newID, oldID); err != nil {
		return &StorageError{Path: cl.path, Op: "exec", Err: err}
	}
	return nil
}

// List returns all summaries in insertion order
func (cl *ChatList) List() ([]ChatSummary, error) {
	rows, err := cl.db.Query("SELECT id, title FROM chats ORDER BY position")
	if err != nil {
		return nil, &StorageError{Path: cl.path, Op: "query", Err: err}
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var chat ChatSummary
		if err := rows.Scan(&chat.ID, &chat.Title); err != nil {
			return nil, &StorageError{Path: cl.path, Op: "query", Err: err}
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Path: cl.path, Op: "query", Err: err}
	}

	return chats, nil
}

// Get returns the summary for one conversation
func (cl *ChatList) Get(id string) (ChatSummary, bool, error) {
	var chat ChatSummary
	err := cl.db.QueryRow("SELECT id, title FROM chats WHERE id = ?", id).Scan(&chat.ID, &chat.Title)
	if err == sql.ErrNoRows {
		return ChatSummary{}, false, nil
	}
	if err != nil {
		return ChatSummary{}, false, &StorageError{Path: cl.path, Op: "query", Err: err}
	}
	return chat, true, nil
}

// Remove deletes a conversation summary
func (cl *ChatList) Remove(id string) error {
	if _, err := cl.db.Exec("DELETE FROM chats WHERE id = ?", id); err != nil {
		return &StorageError{Path: cl.path, Op: "exec", Err: err}
	}
	return nil
}

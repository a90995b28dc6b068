package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Handlers define their own response types; this struct is used by
// the repository and service layers only.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  DisplayName  – name shown to other participants.
//  PasswordHash – bcrypt hashed password.
//  IsAdmin      – grants access to the pool administration endpoints.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Username     string    // users.username
    DisplayName  string    // users.display_name
    PasswordHash string    // users.password_hash
    IsAdmin      bool      // users.is_admin
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

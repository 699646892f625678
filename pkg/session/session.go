package session

// User is the profile of the signed-in customer as returned by the catalog
// API on sign-in.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
}

// FullName returns "FirstName LastName" with empty parts dropped.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Session is the token/user pair. The zero value is the logged-out session.
// Token and User are either both set or both absent.
type Session struct {
	// Token is the bearer credential. Empty means absent.
	Token string `json:"token,omitempty"`

	// User is the profile bound to Token. Nil means absent.
	User *User `json:"user,omitempty"`
}

// LoggedIn reports whether the session carries a token and a user.
func (s Session) LoggedIn() bool {
	return s.Token != "" && s.User != nil
}

// Equal reports whether two sessions hold the same token and user fields.
func (s Session) Equal(other Session) bool {
	if s.Token != other.Token {
		return false
	}
	if s.User == nil || other.User == nil {
		return s.User == nil && other.User == nil
	}
	return *s.User == *other.User
}

// clone returns a copy that shares no memory with s.
func (s Session) clone() Session {
	if s.User == nil {
		return Session{Token: s.Token}
	}
	u := *s.User
	return Session{Token: s.Token, User: &u}
}

// validPair reports whether token and user form a whole session.
func validPair(token string, user *User) bool {
	return token != "" && user != nil
}

package league

import "time"

// LeagueMeta is stored as JSON in Redis under league:<code>.
type LeagueMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	CreatorHash string    `json:"creator_hash"`
	CreatorName string    `json:"creator_name"`
	MemberLimit int       `json:"member_limit"`
}

type CreateResult struct {
	Code string
	Meta *LeagueMeta
}

type JoinResult struct {
	Meta    *LeagueMeta
	Members int
}

// TableRow is one ranked line of a league standings table.
type TableRow struct {
	PlayerHash   string
	DisplayName  string
	FullSolves   int
	Accuracy     int
	RoundsPlayed int
	BestLevel    int
}

// Errors
var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrLeagueGone      = errf("league not found or expired")
	ErrLeagueFull      = errf("league already at member limit")
	ErrAlreadyInLeague = errf("player already belongs to a league")
	ErrNotInLeague     = errf("player does not belong to a league")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

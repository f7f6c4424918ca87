// Package types contains the contest data shapes shared across the application.
package types

// DefaultRating is the prior rating assumed for a contestant with no rating data.
const DefaultRating = 1500

// Member is a single participant of a party.
type Member struct {
	Handle string `json:"handle"`
}

// Party groups the members competing as one standings row.
type Party struct {
	Members         []Member `json:"members"`
	ParticipantType string   `json:"participantType,omitempty"`
	TeamName        string   `json:"teamName,omitempty"`
}

// ContestStanding is one contestant's row in a contest snapshot.
type ContestStanding struct {
	Rank   int     `json:"rank"`
	Party  Party   `json:"party"`
	Points float64 `json:"points"`
}

// Handle returns the handle used to look up the row's prior rating: the
// first party member. Empty when the party has no members.
func (s ContestStanding) Handle() string {
	if len(s.Party.Members) == 0 {
		return ""
	}
	return s.Party.Members[0].Handle
}

// HasMember reports whether handle competes in this row.
func (s ContestStanding) HasMember(handle string) bool {
	for _, m := range s.Party.Members {
		if m.Handle == handle {
			return true
		}
	}
	return false
}

// Contest describes a contest as returned by the upstream API.
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Phase            string `json:"phase"`
	Frozen           bool   `json:"frozen"`
	DurationSeconds  int64  `json:"durationSeconds"`
	StartTimeSeconds int64  `json:"startTimeSeconds,omitempty"`
}

// Problem is a contest problem. Only carried through to clients.
type Problem struct {
	ContestID int      `json:"contestId,omitempty"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Type      string   `json:"type,omitempty"`
	Points    float64  `json:"points,omitempty"`
	Rating    int      `json:"rating,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// StandingsResponse is a full contest snapshot.
type StandingsResponse struct {
	Contest  Contest           `json:"contest"`
	Problems []Problem         `json:"problems"`
	Rows     []ContestStanding `json:"rows"`
}

// Handles returns the rating handle of every row, in row order.
func (r StandingsResponse) Handles() []string {
	handles := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		handles[i] = row.Handle()
	}
	return handles
}

// FindRow returns the first row in which handle is a party member.
func (r StandingsResponse) FindRow(handle string) (ContestStanding, bool) {
	for _, row := range r.Rows {
		if row.HasMember(handle) {
			return row, true
		}
	}
	return ContestStanding{}, false
}

// RatingChange is a contestant's rating movement caused by a contest.
type RatingChange struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Handle                  string `json:"handle"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
}

// UserInfo is a user profile. Rating is zero for unrated users.
type UserInfo struct {
	Handle    string `json:"handle"`
	Rating    int    `json:"rating,omitempty"`
	MaxRating int    `json:"maxRating,omitempty"`
	Rank      string `json:"rank,omitempty"`
	MaxRank   string `json:"maxRank,omitempty"`
	Country   string `json:"country,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// PerformanceResult is the performance of one queried handle. A nil
// Performance means the handle was not found in the standings.
type PerformanceResult struct {
	Handle      string `json:"handle"`
	Performance *int   `json:"performance"`
}

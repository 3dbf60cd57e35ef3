package model

type Idea struct {
	ID    int64  `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type CreateIdeaRequest struct {
	Text *string `json:"text"`
}

type VoteRequest struct {
	ID *int64 `json:"id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   string
}

// FindIdea returns the idea with the given id and whether it was present.
func FindIdea(ideas []Idea, id int64) (Idea, bool) {
	for _, idea := range ideas {
		if idea.ID == id {
			return idea, true
		}
	}
	return Idea{}, false
}

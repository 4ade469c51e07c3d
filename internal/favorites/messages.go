package favorites

import "github.com/hitoshi/movieverse/internal/model"

const msgUserNotLoggedIn = "User not logged in"

type listMessages struct {
	loginToAdd   string
	added        string
	removed      string
	addFailed    string
	removeFailed string
}

var (
	favoritesMessages = listMessages{
		loginToAdd:   "Please login to add favorites",
		added:        "Added to favorites!",
		removed:      "Removed from favorites",
		addFailed:    "Failed to add to favorites",
		removeFailed: "Failed to remove from favorites",
	}
	watchlistMessages = listMessages{
		loginToAdd:   "Please login to add to watchlist",
		added:        "Added to watchlist!",
		removed:      "Removed from watchlist",
		addFailed:    "Failed to add to watchlist",
		removeFailed: "Failed to remove from watchlist",
	}
)

func messagesFor(kind model.ListKind) listMessages {
	if kind == model.ListWatchlist {
		return watchlistMessages
	}
	return favoritesMessages
}

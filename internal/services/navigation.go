package services

import (
	"net/url"

	"route-tracker/internal/domain"
)

const googleMapsDirectionsURL = "https://www.google.com/maps/dir/"

// NavigationLink builds a deep link that opens turn-by-turn driving directions
// from origin to dest in an external maps application.
func NavigationLink(origin, dest domain.Coordinates) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", origin.String())
	q.Set("destination", dest.String())
	q.Set("travelmode", "driving")

	return googleMapsDirectionsURL + "?" + q.Encode()
}

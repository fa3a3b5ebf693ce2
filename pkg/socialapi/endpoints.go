package socialapi

import (
	"net/url"
	"strconv"
)

const (
	userInfoPath   = "/user/info"
	followingsPath = "/user/followings"
)

func userInfoQuery(username string) url.Values {
	return url.Values{"userName": {username}}
}

func followingsQuery(username string, pageSize int, cursor string) url.Values {
	q := url.Values{
		"pageSize": {strconv.Itoa(pageSize)},
		"userName": {username},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return q
}

package chessdto

type Friend struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type OnlineFriends struct {
	Friends []Friend `json:"friends"`
}

type DirectMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

package lcapi

// GraphQL wire shapes for the leetcode.com endpoint.

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type questionNode struct {
	Title      string  `json:"title"`
	TitleSlug  string  `json:"titleSlug"`
	Difficulty string  `json:"difficulty"`
	AcRate     float64 `json:"acRate"`
	PaidOnly   bool    `json:"paidOnly"`
}

type dailyResponse struct {
	Data struct {
		ActiveDailyCodingChallengeQuestion struct {
			Date     string       `json:"date"`
			Link     string       `json:"link"`
			Question questionNode `json:"question"`
		} `json:"activeDailyCodingChallengeQuestion"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type recentAcResponse struct {
	Data struct {
		RecentAcSubmissionList []struct {
			Title     string `json:"title"`
			TitleSlug string `json:"titleSlug"`
			Timestamp string `json:"timestamp"`
		} `json:"recentAcSubmissionList"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type randomQuestionResponse struct {
	Data struct {
		RandomQuestion *questionNode `json:"randomQuestion"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type profileSummaryResponse struct {
	Data struct {
		MatchedUser *struct {
			Profile struct {
				AboutMe string `json:"aboutMe"`
			} `json:"profile"`
		} `json:"matchedUser"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type solveCountResponse struct {
	Data struct {
		Progress struct {
			NumAcceptedQuestions []struct {
				Count      int    `json:"count"`
				Difficulty string `json:"difficulty"`
			} `json:"numAcceptedQuestions"`
		} `json:"userProfileUserQuestionProgressV2"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

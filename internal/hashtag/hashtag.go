// Package hashtag derives the recommended hashtag list for a season and purpose.
package hashtag

import "strings"

var baseTags = []string{"#エアコンクリーニング", "#長野県", "#ワークスS"}

var seasonTags = map[string][]string{
	"spring": {"#春のエアコンクリーニング", "#早期予約"},
	"summer": {"#夏本番", "#エアコン快適"},
	"autumn": {"#秋のメンテナンス", "#暖房前クリーニング"},
	"winter": {"#冬のエアコン", "#暖房シーズン"},
}

var purposeTags = map[string][]string{
	"booking": {"#予約受付中", "#お早めに"},
	"trust":   {"#地域密着", "#信頼"},
	"local":   {"#長野で生まれ育った", "#地元愛"},
	"value":   {"#個人事業主", "#顔が見える"},
	"service": {"#プロの技術", "#新品のような風"},
}

var locationTags = []string{"#長野市", "#松本市", "#上田市", "#諏訪市"}

// locationCount is how many location tags are appended, taken from the front of the pool.
const locationCount = 2

// Derive returns base tags, then season tags, then purpose tags, then the
// first two location tags. Unknown or empty ids contribute nothing.
func Derive(season, purpose string) []string {
	tags := make([]string, 0, len(baseTags)+4+locationCount)
	tags = append(tags, baseTags...)
	tags = append(tags, seasonTags[season]...)
	tags = append(tags, purposeTags[purpose]...)
	tags = append(tags, locationTags[:locationCount]...)
	return tags
}

// Line joins tags with single spaces, the form used in copy text and exports.
func Line(tags []string) string {
	return strings.Join(tags, " ")
}

package api

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateResourceID はIDとして有効な値（正の整数）かどうかを返す。
func ValidateResourceID(id int64) bool {
	return id > 0
}

// ParseID は文字列をリソースまたはユーザーのIDとして解釈する。
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || !ValidateResourceID(n) {
		return 0, fmt.Errorf("IDは正の整数で指定してください: %q", s)
	}
	return uint(n), nil
}

// ValidateResource はAPIから受け取ったリソースが表示可能な形かどうかを返す。
// IDが正で、名前と単位が設定されている必要がある。
func ValidateResource(r *Resource) bool {
	return r != nil &&
		ValidateResourceID(int64(r.ID)) &&
		r.Name != "" &&
		r.Unit != ""
}

// Package view はカタログとユーザー状態からページごとの表示モデルを組み立てる。
package view

// PageSize は1ページあたりの作品数（3行×6列）。
const PageSize = 18

// TotalPages は n 件を size 件ずつ分けたときのページ数を返す。
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// ClampPage はページ番号を 1..TotalPages の範囲に収める。0件の場合は 1 を返す。
func ClampPage(page, n, size int) int {
	total := TotalPages(n, size)
	if page < 1 || total == 0 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// Paginate は items のうち page ページ目の要素を返す。
// 範囲外のページ番号は最も近い有効なページに丸め、実際に使ったページ番号も返す。
func Paginate[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = PageSize
	}
	page = ClampPage(page, len(items), size)
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, page
	}
	end := min(start+size, len(items))
	return items[start:end], page
}

package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultSize = 20
	maxSize     = 200
)

// Pagination is 1-based; page 0 and page 1 both mean the first page.
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

func (p *Pagination) SetSize(querySize string) error {
	if querySize == "" {
		p.Size = defaultSize
		return nil
	}
	size, err := strconv.Atoi(querySize)
	if err != nil || size <= 0 {
		return fmt.Errorf("invalid size: %q", querySize)
	}
	if size > maxSize {
		size = maxSize
	}
	p.Size = size
	return nil
}

func (p *Pagination) SetPage(queryPage string) error {
	if queryPage == "" {
		p.Page = 1
		return nil
	}
	page, err := strconv.Atoi(queryPage)
	if err != nil || page < 0 {
		return fmt.Errorf("invalid page: %q", queryPage)
	}
	if page == 0 {
		page = 1
	}
	p.Page = page
	return nil
}

func (p *Pagination) GetSize() int {
	if p.Size <= 0 {
		return defaultSize
	}
	return p.Size
}

func (p *Pagination) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

func (p *Pagination) GetOffset() int {
	return (p.GetPage() - 1) * p.GetSize()
}

func (p *Pagination) GetLimit() int {
	return p.GetSize()
}

func GetPaginationFromCtx(c echo.Context) (*Pagination, error) {
	p := &Pagination{}
	if err := p.SetSize(c.QueryParam("size")); err != nil {
		return nil, err
	}
	if err := p.SetPage(c.QueryParam("page")); err != nil {
		return nil, err
	}
	return p, nil
}

func GetTotalPages(totalCount int, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(pageSize)))
}

func GetHasMore(currPage, totalCount, pageSize int) bool {
	return currPage*pageSize < totalCount
}

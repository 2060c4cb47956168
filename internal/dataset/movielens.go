// Package dataset 读取 MovieLens 数据集（movies.csv / ratings.csv）
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrNoRatings 评分文件不存在，导入时按无评分处理
var ErrNoRatings = errors.New("ratings file not found")

// Record movies.csv 中的一行
type Record struct {
	MLID   int
	Title  string
	Year   *int
	Genres []string
}

// Rating 聚合后的评分
type Rating struct {
	Average float64
	Count   int
}

// LoadMovies 读取 movies.csv，文件缺失或格式错误都会返回错误
func LoadMovies(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开电影文件 %s 失败: %w", path, err)
	}
	defer f.Close()
	return ReadMovies(f)
}

// ReadMovies 解析 movieId,title,genres
func ReadMovies(r io.Reader) ([]Record, error) {
	cr := newReader(r)
	cols, err := readHeader(cr, "movieId", "title", "genres")
	if err != nil {
		return nil, fmt.Errorf("movies.csv: %w", err)
	}

	var records []Record
	seen := make(map[int]int)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("movies.csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		id, err := strconv.Atoi(strings.TrimSpace(row[cols["movieId"]]))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("movies.csv 第 %d 行: movieId %q 无效", line, row[cols["movieId"]])
		}
		title, year := SplitTitleYear(row[cols["title"]])
		if title == "" {
			return nil, fmt.Errorf("movies.csv 第 %d 行: 标题为空", line)
		}
		rec := Record{
			MLID:   id,
			Title:  NormalizeTitle(title),
			Year:   year,
			Genres: ParseGenres(row[cols["genres"]]),
		}
		// 同一 movieId 以最后一次出现为准
		if idx, ok := seen[id]; ok {
			records[idx] = rec
			continue
		}
		seen[id] = len(records)
		records = append(records, rec)
	}
	return records, nil
}

// LoadRatings 读取 ratings.csv 并按电影聚合
func LoadRatings(path string) (map[int]Rating, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoRatings)
	}
	if err != nil {
		return nil, fmt.Errorf("打开评分文件 %s 失败: %w", path, err)
	}
	defer f.Close()
	return ReadRatings(f)
}

// ReadRatings 解析 userId,movieId,rating,timestamp，平均分保留两位小数
func ReadRatings(r io.Reader) (map[int]Rating, error) {
	cr := newReader(r)
	cols, err := readHeader(cr, "movieId", "rating")
	if err != nil {
		return nil, fmt.Errorf("ratings.csv: %w", err)
	}

	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[int]*acc)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ratings.csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		id, err := strconv.Atoi(strings.TrimSpace(row[cols["movieId"]]))
		if err != nil {
			return nil, fmt.Errorf("ratings.csv 第 %d 行: movieId %q 无效", line, row[cols["movieId"]])
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[cols["rating"]]), 64)
		if err != nil || math.IsNaN(v) {
			return nil, fmt.Errorf("ratings.csv 第 %d 行: rating %q 无效", line, row[cols["rating"]])
		}
		a, ok := sums[id]
		if !ok {
			a = &acc{}
			sums[id] = a
		}
		a.sum += v
		a.count++
	}

	ratings := make(map[int]Rating, len(sums))
	for id, a := range sums {
		ratings[id] = Rating{
			Average: math.Round(a.sum/float64(a.count)*100) / 100,
			Count:   a.count,
		}
	}
	return ratings, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	return cr
}

// readHeader 读取表头并返回列下标，缺少必需列时报错
func readHeader(cr *csv.Reader, required ...string) (map[string]int, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("文件为空")
	}
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("缺少列 %s", name)
		}
	}
	return cols, nil
}

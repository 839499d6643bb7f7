// 包 tabular：带表头的分隔文本解析，以及按键把表格指标并入几何要素属性
package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"cdi-map/internal/geo"
	"cdi-map/internal/logger"
	"cdi-map/internal/source"
)

// ErrNoHeader：表格文本缺少可读的表头行
var ErrNoHeader = errors.New("tabular: missing header row")

// floatPattern：与前端解析器一致的数值文法，匹配的单元格按数值处理
var floatPattern = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// 文档注释：单元格动态类型转换
// 背景：数值、true/false 分别转为 float64 / bool，空单元格视为缺失（nil），其余保留原文本。
func typed(cell string) any {
	switch {
	case cell == "":
		return nil
	case cell == "true":
		return true
	case cell == "false":
		return false
	case floatPattern.MatchString(cell):
		f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err == nil {
			return f
		}
	}
	return cell
}

// Row：一行记录，列名 → 动态类型值；短行缺失的列不出现在 Row 中
type Row map[string]any

// Table：解析结果
type Table struct {
	Header  []string
	Rows    []Row
	Skipped int
}

// 文档注释：解析带表头的 CSV 文本
// 约束：允许宽松引号与不等长行；空行跳过；单行解析失败只跳过该行；表头不可读时返回 ErrNoHeader。
func Parse(b []byte) (*Table, error) {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, errors.Join(ErrNoHeader, err)
	}
	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Skipped++
				continue
			}
			return t, err
		}
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = typed(rec[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Records：连接用的键值表（JoinedRecordMap）；nil 值表示该键存在但指标缺失
type Records map[string]any

// 文档注释：由表格构建键值表
// 约束：键为键列值的文本形式（数值取最短十进制表示）；缺少键列或键为空的行跳过；重复键以首次出现为准。
func BuildRecords(t *Table, keyColumn, valueColumn string) Records {
	out := make(Records, len(t.Rows))
	dup := 0
	for _, row := range t.Rows {
		k, ok := row[keyColumn]
		if !ok || k == nil {
			continue
		}
		key := geo.KeyString(k)
		if key == "" {
			continue
		}
		if _, seen := out[key]; seen {
			dup++
			continue
		}
		out[key] = row[valueColumn]
	}
	if dup > 0 {
		logger.L().Debug("table_duplicate_keys", "column", keyColumn, "count", dup)
	}
	return out
}

// 文档注释：拉取并解析表格为键值表
// 异常：拉取失败、非 2xx、表头不可读均返回 KindTable 的 LoadError；坏行只计数不报错。
func Load(ctx context.Context, f source.Fetcher, url, keyColumn, valueColumn string) (Records, error) {
	b, err := source.Load(ctx, f, source.KindTable, url)
	if err != nil {
		return nil, err
	}
	t, err := Parse(b)
	if err != nil {
		return nil, source.Wrap(source.KindTable, url, err)
	}
	if t.Skipped > 0 {
		logger.L().Warn("table_rows_skipped", "url", url, "skipped", t.Skipped)
	}
	recs := BuildRecords(t, keyColumn, valueColumn)
	logger.L().Debug("table_load_ok", "url", url, "rows", len(t.Rows), "keys", len(recs))
	return recs, nil
}

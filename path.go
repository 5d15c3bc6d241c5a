package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path 数据源位置：文件路径或mongo的{db}.{coll}
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, nil
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) String() string {
	if p.File != "" {
		return p.File
	}
	return p.DB + "." + p.Coll
}

func (p *Path) IsMongo() bool {
	return p.File == ""
}

// CacheKey 源数据对应的缓存文件名
func (p *Path) CacheKey() string {
	if p.File != "" {
		base := filepath.Base(p.File)
		return strings.TrimSuffix(base, filepath.Ext(base)) + ".bson"
	}
	return p.DB + "." + p.Coll + ".bson"
}

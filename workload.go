package main

import (
	"math/rand"

	"github.com/btree-query-bench/bpidx/dbms/index"
)

type workloadType string

const (
	oltp      workloadType = "OLTP (90/10)"
	olap      workloadType = "OLAP (10/90)"
	reporting workloadType = "Reporting (Range)"
)

// executeWorkload runs a mixed distribution of ops against idx.
func executeWorkload(idx index.Index, wType workloadType, ops int) error {
	for i := 0; i < ops; i++ {
		choice := rand.Intn(100)
		key := int32(rand.Intn(ops))

		switch wType {
		case oltp:
			if choice < 90 {
				if _, _, err := idx.Search(key); err != nil {
					return err
				}
			} else if err := idx.Insert(key, key); err != nil {
				return err
			}
		case olap:
			if choice < 10 {
				if _, _, err := idx.Search(key); err != nil {
					return err
				}
			} else if err := idx.Insert(key, key); err != nil {
				return err
			}
		case reporting:
			it, err := idx.Range(key, key+100)
			if err != nil {
				return err
			}
			for it.Next() {
			}
			err = it.Error()
			it.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

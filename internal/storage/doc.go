/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists the editing session snapshot.
// It offers three interchangeable key-value stores: a directory of JSON files with transactional writes and
// timestamped backups, an embedded SQLite database (modernc.org/sqlite) that also keeps a pruned history of
// saved snapshots, and Postgres through pgx with embedded migrations.
// The snapshot codec validates payloads against a JSON Schema before decoding so a malformed save never reaches
// the session.
package storage
